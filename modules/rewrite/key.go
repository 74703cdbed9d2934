package rewrite

import (
	"github.com/coldfix/git-filter-tree/modules/filemode"
	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/oid"
)

// Key is a dependency fingerprint (spec §4.3): the subset of an
// Entry's attributes that determines a filter's rewrite output for it.
// Two entries with equal keys are guaranteed to produce the same
// rewrite, which is exactly what lets the memoization layer collapse
// them to a single computation. Any comparable value works; this
// package's filters use the struct types below.
type Key any

// FullKey is the default dependency fingerprint: (oid, path, mode).
// It is the most conservative choice — safe for any filter, since two
// entries only collide if every attribute a filter could plausibly
// read from an Entry already matches.
type FullKey struct {
	OID  oid.OID
	Path string
	Mode filemode.FileMode
}

// OIDKey depends on content alone — appropriate only for a filter whose
// output never depends on an entry's name, mode or location.
type OIDKey struct {
	OID oid.OID
}

// PathKey depends on content and location — appropriate for
// path-sensitive filters such as remove-paths (spec §4.6).
type PathKey struct {
	OID  oid.OID
	Path string
}

// NameKey depends on content and the entry's own name (not its full
// path) — appropriate for extension-sensitive filters such as
// decompress-by-extension and line-ending normalization (spec §4.6),
// which only care about the file's own name, not where it lives.
type NameKey struct {
	OID  oid.OID
	Name string
	Mode filemode.FileMode
}

// DefaultDepends is the fallback fingerprint used when a Filter does
// not implement DependsFilter: key on (oid, path, mode).
func DefaultDepends(e objstore.Entry) Key {
	return FullKey{OID: e.OID, Path: e.Path, Mode: e.Mode}
}
