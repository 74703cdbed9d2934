// Package rewrite implements the tree-rewrite engine of spec.md: a
// recursive traversal over a repository's Merkle DAG of commits and
// trees (the Rewrite Engine, spec §4.5), backed by a memoization layer
// keyed by a filter-defined dependency fingerprint (§4.3) and a
// cooperative, bounded concurrency scheduler (§4.4), dispatching to
// user-supplied Filters (§4.6) and finishing with a Driver that
// persists a root-map and retargets references (§4.7).
package rewrite

import (
	"context"
	"fmt"

	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/oid"
)

// TagPolicy resolves the open question of spec §9 ("annotated-tag
// rewriting"): the source is ambiguous, so the behavior is a flag
// rather than a guess.
type TagPolicy int

const (
	// TagConservative rewrites a tag's target if it is itself
	// rewritten, preserving the tag's own metadata (name/tagger/
	// message). This is the default.
	TagConservative TagPolicy = iota
	// TagStrict refuses to run (returns an UnsupportedError) if any
	// supplied root resolves to a tag object.
	TagStrict
)

// Engine is the stateless (besides its caches) rewrite engine of spec
// §4.5. Construct one per run via NewEngine; it is safe for concurrent
// use by many goroutines, which is the point — the Scheduler drives
// many rewrites through the same Engine at once.
type Engine struct {
	store     objstore.Store
	filter    Filter
	sched     *Scheduler
	tagPolicy TagPolicy

	objectMemo *Memo[[]objstore.Entry]
	treeMemo   *Memo[oid.OID]
	rootMemo   *Memo[oid.OID]
}

// NewEngine builds an Engine over store, dispatching every rewrite to
// filter and bounding concurrency via sched.
func NewEngine(store objstore.Store, filter Filter, sched *Scheduler, tagPolicy TagPolicy) *Engine {
	return &Engine{
		store:      store,
		filter:     filter,
		sched:      sched,
		tagPolicy:  tagPolicy,
		objectMemo: NewMemo[[]objstore.Entry](),
		treeMemo:   NewMemo[oid.OID](),
		rootMemo:   NewMemo[oid.OID](),
	}
}

// Store returns the engine's Object Store Adapter, letting a TreeFilter
// or RootFilter read or write objects directly (e.g. the
// subdirectory-to-submodule filter's treemap lookups and synthesized
// .gitmodules blob).
func (e *Engine) Store() objstore.Store { return e.store }

// RewriteTree runs the engine's generic recursive tree rewrite on
// entry, the same descent rewriteObject would have used had the
// filter not intercepted it via TreeFilter. A TreeFilter that wants to
// recurse into some subtrees while special-casing others (spec §4.6's
// subdirectory-to-submodule filter only special-cases its one target
// folder) calls this for the subtrees it wants generic treatment of.
func (e *Engine) RewriteTree(ctx context.Context, entry objstore.Entry) (oid.OID, error) {
	return e.rewriteTreeGeneric(ctx, entry)
}

// RewriteRoot rewrites the object named by root (a tree, commit, or —
// subject to TagPolicy — tag) and returns the OID of its rewritten
// counterpart. A root all of whose dependencies are fixed points
// returns root itself unchanged, without writing any new object (spec
// §8, "Fixed-point").
func (e *Engine) RewriteRoot(ctx context.Context, root oid.OID) (oid.OID, error) {
	kind, err := ioDo(ctx, e.sched, func(ctx context.Context) (oid.Kind, error) {
		return e.store.LookupKind(ctx, root)
	})
	if err != nil {
		return oid.Zero, err
	}
	rootEntry := objstore.Root(kind, root)
	key := depends(e.filter, rootEntry)
	return e.rootMemo.Do(key, func() (oid.OID, error) {
		switch kind {
		case oid.Tree:
			return e.rewriteRootTree(ctx, rootEntry)
		case oid.Commit:
			return e.rewriteRootCommit(ctx, root)
		case oid.Tag:
			return e.rewriteRootTag(ctx, root)
		default:
			return oid.Zero, &UnsupportedError{What: fmt.Sprintf("root kind %q", kind)}
		}
	})
}

func (e *Engine) rewriteRootTree(ctx context.Context, rootEntry objstore.Entry) (oid.OID, error) {
	newOID, err := e.rewriteTreeGeneric(ctx, rootEntry)
	if err != nil {
		return oid.Zero, err
	}
	if rf, ok := e.filter.(RootFilter); ok {
		newEntry := objstore.Entry{Mode: rootEntry.Mode, Kind: oid.Tree, OID: newOID}
		extra, err := rf.FinishRoot(ctx, e, newEntry)
		if err != nil {
			return oid.Zero, &FilterError{Filter: filterName(e.filter), Path: rootEntry.Path, Err: err}
		}
		if len(extra) > 0 {
			entries, err := ioDo(ctx, e.sched, func(ctx context.Context) ([]objstore.Entry, error) {
				return e.store.ReadTree(ctx, newOID)
			})
			if err != nil {
				return oid.Zero, err
			}
			merged, err := mergeTopLevel(entries, extra)
			if err != nil {
				return oid.Zero, err
			}
			return ioDo(ctx, e.sched, func(ctx context.Context) (oid.OID, error) {
				return e.store.WriteTree(ctx, merged)
			})
		}
	}
	return newOID, nil
}

// mergeTopLevel merges extra entries into an existing root tree's
// entry list by name, overwriting any entry that already has that
// name (used to inject/refresh a top-level .gitmodules, spec §4.6).
func mergeTopLevel(base, extra []objstore.Entry) ([]objstore.Entry, error) {
	byName := make(map[string]int, len(base))
	out := append([]objstore.Entry(nil), base...)
	for i, e := range out {
		byName[e.Name] = i
	}
	for _, e := range extra {
		if i, ok := byName[e.Name]; ok {
			out[i] = e
			continue
		}
		byName[e.Name] = len(out)
		out = append(out, e)
	}
	return out, nil
}

// rewriteTreeGeneric is the generic recursive tree rewrite of spec
// §4.5: read entries, recursively rewrite each, concatenate, write a
// new tree unless nothing changed. It is memoized per-tree (spec §4.3)
// independent of the per-object memoization rewriteObject uses, since
// a caller may ask for a tree's rewrite directly (a root tree) as well
// as indirectly (as a child of some other tree).
func (e *Engine) rewriteTreeGeneric(ctx context.Context, treeEntry objstore.Entry) (oid.OID, error) {
	key := depends(e.filter, treeEntry)
	return e.treeMemo.Do(key, func() (oid.OID, error) {
		entries, err := ioDo(ctx, e.sched, func(ctx context.Context) ([]objstore.Entry, error) {
			return e.store.ReadTree(ctx, treeEntry.OID)
		})
		if err != nil {
			return oid.Zero, err
		}
		rewritten, err := e.rewriteChildren(ctx, treeEntry, entries)
		if err != nil {
			return oid.Zero, err
		}
		if sameEntries(entries, rewritten) {
			return treeEntry.OID, nil
		}
		return ioDo(ctx, e.sched, func(ctx context.Context) (oid.OID, error) {
			return e.store.WriteTree(ctx, rewritten)
		})
	})
}

// rewriteChildren recursively rewrites every entry of a tree
// concurrently (one Scheduler task per entry), gathers the results
// positionally so output order matches input order (spec §4.5,
// "Ordering and tie-breaks"), concatenates each entry's zero-or-more
// replacements in order, and fails with NameCollisionError if two
// replacements share a name.
func (e *Engine) rewriteChildren(ctx context.Context, parent objstore.Entry, entries []objstore.Entry) ([]objstore.Entry, error) {
	results := make([][]objstore.Entry, len(entries))
	tasks := make([]Task, len(entries))
	for i, child := range entries {
		i, child := i, child
		tasks[i] = func(ctx context.Context) error {
			childEntry := objstore.Child(parent, child.Mode, child.Kind, child.OID, child.Name)
			out, err := e.rewriteObject(ctx, childEntry)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		}
	}
	if err := e.sched.Enqueue(ctx, tasks...).Wait(); err != nil {
		return nil, err
	}
	var out []objstore.Entry
	seen := make(map[string]struct{}, len(entries))
	for _, rs := range results {
		for _, r := range rs {
			if _, dup := seen[r.Name]; dup {
				return nil, &NameCollisionError{TreePath: parent.Path, Name: r.Name}
			}
			seen[r.Name] = struct{}{}
			out = append(out, r)
		}
	}
	return out, nil
}

// rewriteObject is rewrite_object of spec §4.5: dispatch by kind to
// RewriteFile (blobs and symlinks), rewriteTreeDispatch (trees), or
// rewriteCommitEmbedded (a submodule-link entry embedded in a tree).
// Memoized per-entry, independent of the tree- and root-level caches.
func (e *Engine) rewriteObject(ctx context.Context, entry objstore.Entry) ([]objstore.Entry, error) {
	key := depends(e.filter, entry)
	return e.objectMemo.Do(key, func() ([]objstore.Entry, error) {
		switch entry.Kind {
		case oid.Tree:
			return e.rewriteTreeDispatch(ctx, entry)
		case oid.Commit:
			return e.rewriteCommitEmbedded(ctx, entry)
		case oid.Blob:
			out, err := e.filter.RewriteFile(ctx, entry)
			if err != nil {
				return nil, &FilterError{Filter: filterName(e.filter), Path: entry.Path, Err: err}
			}
			return out, nil
		default:
			return nil, &UnsupportedError{What: fmt.Sprintf("entry kind %q at %q", entry.Kind, entry.Path)}
		}
	})
}

func (e *Engine) rewriteTreeDispatch(ctx context.Context, entry objstore.Entry) ([]objstore.Entry, error) {
	if tf, ok := e.filter.(TreeFilter); ok {
		out, err := tf.RewriteTree(ctx, e, entry)
		if err != nil {
			return nil, &FilterError{Filter: filterName(e.filter), Path: entry.Path, Err: err}
		}
		return out, nil
	}
	newOID, err := e.rewriteTreeGeneric(ctx, entry)
	if err != nil {
		return nil, err
	}
	return []objstore.Entry{{Mode: entry.Mode, Kind: oid.Tree, OID: newOID, Name: entry.Name, Path: entry.Path}}, nil
}

func (e *Engine) rewriteCommitEmbedded(ctx context.Context, entry objstore.Entry) ([]objstore.Entry, error) {
	if cf, ok := e.filter.(CommitFilter); ok {
		out, err := cf.RewriteCommit(ctx, entry)
		if err != nil {
			return nil, &FilterError{Filter: filterName(e.filter), Path: entry.Path, Err: err}
		}
		return out, nil
	}
	return []objstore.Entry{entry}, nil
}

// rewriteRootCommit is rewrite_root_commit of spec §4.5: rewrite the
// commit's tree and each parent concurrently (both "as a root"),
// create a new commit preserving author/committer/message, or return
// the original commit OID unchanged if every dependency was a fixed
// point.
func (e *Engine) rewriteRootCommit(ctx context.Context, commitOID oid.OID) (oid.OID, error) {
	commit, err := ioDo(ctx, e.sched, func(ctx context.Context) (*objstore.CommitObject, error) {
		return e.store.ReadCommit(ctx, commitOID)
	})
	if err != nil {
		return oid.Zero, err
	}

	newTree := commit.Tree
	newParents := make([]oid.OID, len(commit.Parents))
	var rewriteErr error

	tasks := make([]Task, 0, 1+len(commit.Parents))
	tasks = append(tasks, func(ctx context.Context) error {
		t, err := e.RewriteRoot(ctx, commit.Tree)
		if err != nil {
			return err
		}
		newTree = t
		return nil
	})
	for i, p := range commit.Parents {
		i, p := i, p
		tasks = append(tasks, func(ctx context.Context) error {
			np, err := e.RewriteRoot(ctx, p)
			if err != nil {
				return err
			}
			newParents[i] = np
			return nil
		})
	}
	if rewriteErr = e.sched.Enqueue(ctx, tasks...).Wait(); rewriteErr != nil {
		return oid.Zero, rewriteErr
	}

	if newTree == commit.Tree && sameOIDs(newParents, commit.Parents) {
		return commitOID, nil
	}
	return ioDo(ctx, e.sched, func(ctx context.Context) (oid.OID, error) {
		return e.store.CreateCommit(ctx, commit.Author, commit.Committer, commit.Message, newTree, newParents)
	})
}

// rewriteRootTag implements the conservative branch of spec §9's open
// question: rewrite the tag's target and recreate the tag pointing at
// it, preserving the tag's own name/tagger/message. Under TagStrict it
// returns an UnsupportedError instead; this is the only place tag roots
// are rejected, the Driver does not inspect root kinds itself.
func (e *Engine) rewriteRootTag(ctx context.Context, tagOID oid.OID) (oid.OID, error) {
	if e.tagPolicy == TagStrict {
		return oid.Zero, &UnsupportedError{What: "tag object (strict tag policy)"}
	}
	tag, err := ioDo(ctx, e.sched, func(ctx context.Context) (*objstore.TagObject, error) {
		return e.store.ReadTag(ctx, tagOID)
	})
	if err != nil {
		return oid.Zero, err
	}
	newTarget, err := e.RewriteRoot(ctx, tag.Target)
	if err != nil {
		return oid.Zero, err
	}
	if newTarget == tag.Target {
		return tagOID, nil
	}
	return ioDo(ctx, e.sched, func(ctx context.Context) (oid.OID, error) {
		return e.store.CreateTag(ctx, tag.Name, newTarget, tag.TargetKind, tag.Tagger, tag.Message)
	})
}

func sameEntries(a, b []objstore.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func sameOIDs(a, b []oid.OID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func filterName(f Filter) string {
	if n, ok := f.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", f)
}
