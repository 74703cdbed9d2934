package rewrite

import (
	"context"

	"github.com/coldfix/git-filter-tree/modules/objstore"
)

// Filter is the contract of spec §4.6: the only method every filter
// must implement is RewriteFile. The other hooks (DependsFilter,
// TreeFilter, CommitFilter and RootFilter below) are optional —
// discovered via a type assertion against the concrete Filter value,
// the same "optional interface" idiom the standard library uses for
// io.ReaderFrom / http.Flusher — so a filter that has nothing special
// to say about trees, commits, or its fingerprint need not say
// anything at all.
type Filter interface {
	// RewriteFile rewrites a single blob (or symlink) entry, returning
	// zero or more replacement entries; submodule-link entries go to
	// CommitFilter instead. Zero
	// entries deletes it, one entry (possibly identical) keeps or
	// substitutes it, more than one expands it — spec §9's "Filter
	// output shape" note.
	RewriteFile(ctx context.Context, e objstore.Entry) ([]objstore.Entry, error)
}

// DependsFilter is the optional hook a Filter implements to select its
// own dependency fingerprint (spec §4.3); a Filter that does not
// implement it gets DefaultDepends, i.e. (oid, path, mode).
type DependsFilter interface {
	Depends(e objstore.Entry) Key
}

// TreeFilter is the optional hook a Filter implements to override the
// engine's default recursive tree descent — needed by filters like
// subdirectory-to-submodule that replace an entire subtree with a
// single leaf entry rather than rewriting its contents (spec §4.6). A
// Filter that does not implement it gets the Engine's generic
// recursive rewriteTree (spec §4.5).
type TreeFilter interface {
	RewriteTree(ctx context.Context, eng *Engine, e objstore.Entry) ([]objstore.Entry, error)
}

// CommitFilter is the optional hook for filters that want to inspect
// or alter a submodule-link entry encountered while walking a tree
// (kind == commit, but *embedded in a tree*, not a root commit — spec
// §4.5, "rewrite_commit (commit references embedded in trees —
// typically pass-through)"). A Filter that does not implement it gets
// pass-through: the entry is kept unchanged.
type CommitFilter interface {
	RewriteCommit(ctx context.Context, e objstore.Entry) ([]objstore.Entry, error)
}

// RootFilter is the optional hook for filters that need to observe
// whole-root events — currently only "a root has just finished
// rewriting" (used by subdirectory-to-submodule to inject a top-level
// .gitmodules once per root, spec §4.6 and §9's root-detection note).
type RootFilter interface {
	// FinishRoot runs after a root's tree (or a commit's tree) has been
	// rewritten, and may return additional top-level entries to merge
	// into the root tree (e.g. a synthesized .gitmodules). Returning no
	// entries is a no-op.
	FinishRoot(ctx context.Context, eng *Engine, rootTree objstore.Entry) ([]objstore.Entry, error)
}

func depends(f Filter, e objstore.Entry) Key {
	if df, ok := f.(DependsFilter); ok {
		return df.Depends(e)
	}
	return DefaultDepends(e)
}
