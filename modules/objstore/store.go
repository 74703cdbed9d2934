// Package objstore specifies the Object Store Adapter contract of the
// rewrite engine (spec §4.1): the boundary across which the engine
// reads and writes blob, tree and commit objects by content hash. The
// object database itself is, per spec §1, an external collaborator
// specified only at this interface; this package also ships one
// concrete implementation (gitcli, backed by `git`'s own plumbing
// commands) so the engine is runnable end to end, and a second
// (memstore) for tests.
package objstore

import (
	"context"
	"errors"
	"time"

	"github.com/coldfix/git-filter-tree/modules/oid"
)

// Signature is a commit author/committer identity and timestamp,
// carried through unmodified by commit rewrites that only change tree
// or parent OIDs (spec §4.5 step 2: "the original author/committer/
// message").
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Store is the Object Store Adapter contract of spec §4.1. Every
// method may block on disk or network I/O and must therefore only be
// invoked from a rewrite task running on the Scheduler's executor
// (spec §5). Implementations must be idempotent: writing identical
// content twice returns the same, already-present OID.
type Store interface {
	// ReadTree returns the ordered entries of the tree named by oid,
	// in their on-disk order (spec requires the engine never sort).
	ReadTree(ctx context.Context, id oid.OID) ([]Entry, error)
	// WriteTree serializes entries into a new tree object and returns
	// its OID. Writing the same entries (content and order) twice
	// returns the same OID.
	WriteTree(ctx context.Context, entries []Entry) (oid.OID, error)
	// ReadBlob returns the content of the blob named by oid.
	ReadBlob(ctx context.Context, id oid.OID) ([]byte, error)
	// WriteBlob stores content as a new blob and returns its OID.
	WriteBlob(ctx context.Context, content []byte) (oid.OID, error)
	// CreateCommit creates a new commit object and returns its OID.
	CreateCommit(ctx context.Context, author, committer Signature, message string, tree oid.OID, parents []oid.OID) (oid.OID, error)
	// CreateTag creates a new annotated tag object pointing at target
	// and returns its OID, supporting the conservative tag-rewrite
	// branch of spec §9.
	CreateTag(ctx context.Context, name string, target oid.OID, targetKind oid.Kind, tagger Signature, message string) (oid.OID, error)
	// LookupKind reports whether oid names a blob, tree, commit or tag.
	LookupKind(ctx context.Context, id oid.OID) (oid.Kind, error)
	// ReadCommit decodes a commit object's tree, parents, and
	// author/committer/message.
	ReadCommit(ctx context.Context, id oid.OID) (*CommitObject, error)
	// ReadTag decodes a tag object's target, tagger and message.
	ReadTag(ctx context.Context, id oid.OID) (*TagObject, error)
	// ResolveRef resolves a reference name (e.g. "refs/heads/main") to
	// the OID it currently points at.
	ResolveRef(ctx context.Context, name string) (oid.OID, error)
	// UpdateRef retargets a reference to point at newTarget, asserting
	// its previous value was oldTarget (spec §4.7 phase 3).
	UpdateRef(ctx context.Context, name string, oldTarget, newTarget oid.OID) error
}

// CommitObject is the decoded form of a commit (spec §3, "Commit").
type CommitObject struct {
	Tree      oid.OID
	Parents   []oid.OID
	Author    Signature
	Committer Signature
	Message   string
}

// TagObject is the decoded form of an annotated tag, needed to resolve
// the open question in spec §9 ("annotated-tag rewriting").
type TagObject struct {
	Name       string
	Target     oid.OID
	TargetKind oid.Kind
	Tagger     Signature
	Message    string
}

// Error taxonomy (spec §7). All are fatal to a run: the engine never
// silently recovers from a Store error.
var (
	// ErrNotFound is returned when oid names no object in the store.
	ErrNotFound = errors.New("objstore: object not found")
	// ErrCorrupt is returned when a stored object's content could not
	// be parsed as the kind it claims to be.
	ErrCorrupt = errors.New("objstore: object corrupt")
)

// IOError wraps a failure in the underlying transport (disk, network,
// or the backing git process), satisfying spec §4.1's "IOError"
// taxonomy entry while preserving the original cause via errors.Unwrap.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return "objstore: " + e.Op + ": " + e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsCorrupt reports whether err is or wraps ErrCorrupt.
func IsCorrupt(err error) bool { return errors.Is(err, ErrCorrupt) }
