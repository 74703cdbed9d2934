package filters

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/coldfix/git-filter-tree/modules/filemode"
	"github.com/coldfix/git-filter-tree/modules/oid"
	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/rewrite"
)

// Dir2Mod converts one subfolder to a submodule link throughout
// history, grounded on original_source/git_filter_tree/dir2mod.py
// (and the standalone git-dir2mod.py variants in the same retrieval
// pack). It implements both rewrite.TreeFilter, to intercept the one
// subtree being replaced without touching any other, and
// rewrite.RootFilter, to inject or refresh a top-level .gitmodules
// once the replacement has happened.
type Dir2Mod struct {
	store   objstore.Store
	treemap string
	folder  []string
	url     string
	name    string
}

// NewDir2Mod builds a Dir2Mod filter. treemap is a directory
// containing, for every original tree OID the folder itself has had, a
// file named by that OID whose contents are the target submodule
// commit OID — the same TREEMAP contract dir2mod.py
// documents. folder is a repository-relative path (e.g. "vendor/lib");
// name defaults to folder when empty.
func NewDir2Mod(store objstore.Store, treemap, folder, url, name string) *Dir2Mod {
	if name == "" {
		name = folder
	}
	return &Dir2Mod{
		store:   store,
		treemap: treemap,
		folder:  strings.Split(strings.Trim(folder, "/"), "/"),
		url:     url,
		name:    name,
	}
}

func (*Dir2Mod) Name() string { return "dir2mod" }

func (d *Dir2Mod) folderPath() string { return path.Join(d.folder...) }

// Depends keys on (oid, path): two subtrees at different locations
// must never share a cache entry here, since only the one at
// d.folderPath() is special-cased (dir2mod.py's depends override).
func (d *Dir2Mod) Depends(e objstore.Entry) rewrite.Key {
	return rewrite.PathKey{OID: e.OID, Path: e.Path}
}

// RewriteTree special-cases exactly the target folder, recurses
// generically through any ancestor directory on the way to it, and
// passes every other subtree through untouched — dir2mod.py's
// rewrite_tree, restated without its own memoized has_folder
// bookkeeping (Dir2Mod.FinishRoot recomputes that from the rewritten
// result instead, see below).
func (d *Dir2Mod) RewriteTree(ctx context.Context, eng *rewrite.Engine, e objstore.Entry) ([]objstore.Entry, error) {
	target := d.folderPath()
	switch {
	case e.Path == target:
		commit, err := d.lookupCommit(e.OID)
		if err != nil {
			return nil, err
		}
		return []objstore.Entry{{
			Mode: filemode.Submodule,
			Kind: oid.Commit,
			OID:  commit,
			Name: e.Name,
			Path: e.Path,
		}}, nil
	case isAncestorOf(e.Path, target):
		newOID, err := eng.RewriteTree(ctx, e)
		if err != nil {
			return nil, err
		}
		e.OID = newOID
		return []objstore.Entry{e}, nil
	default:
		return []objstore.Entry{e}, nil
	}
}

// isAncestorOf reports whether dir is a (possibly empty) path prefix
// of target, i.e. recursing into dir could still reach target.
func isAncestorOf(dir, target string) bool {
	if dir == "" {
		return true
	}
	return dir == target || strings.HasPrefix(target, dir+"/")
}

// lookupCommit reads TREEMAP/<original tree oid> and parses its
// single-line commit OID, dir2mod.py's
// open(os.path.join(treemap, obj.sha1)).read().strip().
func (d *Dir2Mod) lookupCommit(treeOID oid.OID) (oid.OID, error) {
	raw, err := os.ReadFile(path.Join(d.treemap, treeOID.String()))
	if err != nil {
		return oid.Zero, fmt.Errorf("dir2mod: treemap lookup for %s: %w", treeOID.String(), err)
	}
	return oid.NewEx(strings.TrimSpace(string(raw)))
}

// FinishRoot walks the rewritten root tree down d.folder; if the path
// now resolves to the submodule-link entry RewriteTree would have
// produced, it injects (or refreshes) a top-level .gitmodules entry
// pointing at it. A root that never contained the target folder is
// left untouched.
func (d *Dir2Mod) FinishRoot(ctx context.Context, eng *rewrite.Engine, rootTree objstore.Entry) ([]objstore.Entry, error) {
	if !d.resolvesToSubmodule(ctx, eng, rootTree.OID) {
		return nil, nil
	}
	existing, err := d.existingGitmodules(ctx, eng, rootTree.OID)
	if err != nil {
		return nil, err
	}
	newOID, err := d.gitmodulesBlob(ctx, eng, existing)
	if err != nil {
		return nil, err
	}
	return []objstore.Entry{{Mode: filemode.Regular, Kind: oid.Blob, OID: newOID, Name: ".gitmodules"}}, nil
}

func (d *Dir2Mod) resolvesToSubmodule(ctx context.Context, eng *rewrite.Engine, rootOID oid.OID) bool {
	cur := rootOID
	for _, comp := range d.folder {
		entries, err := eng.Store().ReadTree(ctx, cur)
		if err != nil {
			return false
		}
		var next *objstore.Entry
		for i := range entries {
			if entries[i].Name == comp {
				next = &entries[i]
				break
			}
		}
		if next == nil {
			return false
		}
		if next.Mode.IsSubmodule() && next.Kind == oid.Commit {
			return comp == d.folder[len(d.folder)-1]
		}
		if next.Kind != oid.Tree {
			return false
		}
		cur = next.OID
	}
	return false
}

func (d *Dir2Mod) existingGitmodules(ctx context.Context, eng *rewrite.Engine, rootOID oid.OID) ([]byte, error) {
	entries, err := eng.Store().ReadTree(ctx, rootOID)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Name == ".gitmodules" {
			return eng.Store().ReadBlob(ctx, e.OID)
		}
	}
	return nil, nil
}

// gitmodulesBlob appends (or creates) the [submodule "NAME"] stanza,
// mirroring dir2mod.py's gitmodules_file template.
func (d *Dir2Mod) gitmodulesBlob(ctx context.Context, eng *rewrite.Engine, existing []byte) (oid.OID, error) {
	stanza := fmt.Sprintf("[submodule %q]\n    path = %s\n    url = %s\n", d.name, d.folderPath(), d.url)
	content := append(append([]byte(nil), existing...), []byte(stanza)...)
	return eng.Store().WriteBlob(ctx, content)
}
