package objstore

import (
	"path"

	"github.com/coldfix/git-filter-tree/modules/filemode"
	"github.com/coldfix/git-filter-tree/modules/oid"
)

// Entry is a single directory-entry record: the tuple (mode, kind, oid,
// name) of spec §3, plus the contextual path leading to it from the
// root of the traversal. Entry is value-typed — copying is cheap and
// its identity is structural, matching spec §4.2.
//
// Path is carried only so filters can make location-dependent
// decisions; it plays no part in an Entry's content-addressed identity
// (two identical subtrees under different parents still share an
// OID).
type Entry struct {
	Mode filemode.FileMode
	Kind oid.Kind
	OID  oid.OID
	Name string
	Path string
}

// Root synthesizes the root pseudo-entry that starts a traversal: empty
// name, empty path, and the given root object's own kind/OID.
func Root(kind oid.Kind, id oid.OID) Entry {
	return Entry{Mode: rootMode(kind), Kind: kind, OID: id}
}

func rootMode(kind oid.Kind) filemode.FileMode {
	if kind == oid.Tree {
		return filemode.Dir
	}
	return 0
}

// Child derives a child entry of parent, extending parent's contextual
// path with name.
func Child(parent Entry, mode filemode.FileMode, kind oid.Kind, id oid.OID, name string) Entry {
	return Entry{
		Mode: mode,
		Kind: kind,
		OID:  id,
		Name: name,
		Path: path.Join(parent.Path, name),
	}
}

// IsRoot reports whether e is the synthesized root pseudo-entry (empty
// name), which the subdirectory-to-submodule filter needs to know
// about in order to decide whether to inject a top-level .gitmodules
// (spec §9, "Submodule-filter root detection").
func (e Entry) IsRoot() bool { return e.Name == "" && e.Path == "" }

// Equal reports whether two entries are identical in mode, kind, OID
// and name — i.e. would serialize to the same tree-entry line,
// independent of contextual path. Engine.rewriteTree uses this to
// detect the fixed-point case (§4.5 step 4).
func (e Entry) Equal(other Entry) bool {
	return e.Mode == other.Mode && e.Kind == other.Kind && e.OID == other.OID && e.Name == other.Name
}
