package filters

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/coldfix/git-filter-tree/modules/oid"
	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/rewrite"
)

// Remove deletes specific files by path, grounded on
// original_source/git_filter_tree/rm.py. Besides dropping the matched
// entries outright, it also scrubs any reference to them out of a
// sibling .gitattributes blob, the one piece of cross-entry state the
// original script special-cases.
type Remove struct {
	store objstore.Store
	paths map[string]struct{}
}

// NewRemove builds a Remove filter over the given repository-relative
// paths (e.g. "docs/old.txt", matching objstore.Entry.Path's format).
func NewRemove(store objstore.Store, paths ...string) *Remove {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[strings.TrimPrefix(p, "/")] = struct{}{}
	}
	return &Remove{store: store, paths: set}
}

func (*Remove) Name() string { return "rm" }

// Depends keys on (oid, path) alone — the rewrite is purely a function
// of content and this entry's own location (rm.py: "rewrite depends
// only on the object payload and name").
func (r *Remove) Depends(e objstore.Entry) rewrite.Key {
	return rewrite.PathKey{OID: e.OID, Path: e.Path}
}

// RewriteFile drops any entry whose path was named for removal, and
// scrubs matching lines out of a .gitattributes blob in place.
func (r *Remove) RewriteFile(ctx context.Context, e objstore.Entry) ([]objstore.Entry, error) {
	if _, remove := r.paths[e.Path]; remove {
		return nil, nil
	}
	if e.Name != ".gitattributes" {
		return []objstore.Entry{e}, nil
	}
	newOID, err := r.scrubGitattributes(ctx, e.OID)
	if err != nil {
		return nil, fmt.Errorf("rm: scrub .gitattributes at %q: %w", e.Path, err)
	}
	e.OID = newOID
	return []objstore.Entry{e}, nil
}

// scrubGitattributes removes any line naming a path slated for
// removal, mirroring rm.py's line.split(' ', 1) filter.
func (r *Remove) scrubGitattributes(ctx context.Context, id oid.OID) (oid.OID, error) {
	content, err := r.store.ReadBlob(ctx, id)
	if err != nil {
		return id, err
	}
	var out bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(content))
	first := true
	for sc.Scan() {
		line := sc.Text()
		name, _, _ := strings.Cut(line, " ")
		if _, remove := r.paths[name]; remove {
			continue
		}
		if !first {
			out.WriteByte('\n')
		}
		out.WriteString(line)
		first = false
	}
	if err := sc.Err(); err != nil {
		return id, err
	}
	return r.store.WriteBlob(ctx, out.Bytes())
}
