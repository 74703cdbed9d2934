package rewrite

import (
	"errors"
	"fmt"
)

// NameCollisionError is spec §7's NameCollision: two different filter
// outputs would collide on the same name within one output tree
// (spec §4.5, "Ordering and tie-breaks").
type NameCollisionError struct {
	TreePath string
	Name     string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("rewrite: name collision on %q while rewriting tree %q", e.Name, e.TreePath)
}

// FilterError wraps an error raised by user filter code, carrying the
// filter name and the entry path being processed, so the Driver can
// print "filter name, offending path, and original exception message"
// (spec §7, "User-visible behavior").
type FilterError struct {
	Filter string
	Path   string
	Err    error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("rewrite: filter %q failed on %q: %v", e.Filter, e.Path, e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }

// UnsupportedError is spec §7's Unsupported: an object kind the engine
// does not handle (a root or tree entry of unknown kind, or a root that
// is a tag object when the Engine's TagPolicy is TagStrict).
type UnsupportedError struct {
	What string
}

func (e *UnsupportedError) Error() string { return "rewrite: unsupported: " + e.What }

// StaleStateError is spec §7's StaleState: the root-map file already
// exists and is non-empty at the start of a run (spec §4.7 phase 1).
type StaleStateError struct {
	Path string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("rewrite: refusing to run: root-map %q already exists and is non-empty", e.Path)
}

// IsNameCollision, IsFilterError, IsUnsupported and IsStaleState are
// the taxonomy predicates callers use to branch on spec §7's error
// kinds without type-asserting directly.
func IsNameCollision(err error) bool {
	var e *NameCollisionError
	return errors.As(err, &e)
}

func IsFilterError(err error) bool {
	var e *FilterError
	return errors.As(err, &e)
}

func IsUnsupported(err error) bool {
	var e *UnsupportedError
	return errors.As(err, &e)
}

func IsStaleState(err error) bool {
	var e *StaleStateError
	return errors.As(err, &e)
}
