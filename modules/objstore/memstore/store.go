// Package memstore is an in-memory objstore.Store used by unit tests
// (and suitable as a reference implementation), standing in for a
// real git object database the way the teacher's own packages test
// storage-facing code against an in-memory backend before a
// disk-backed one.
package memstore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/coldfix/git-filter-tree/modules/filemode"
	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/oid"
)

type object struct {
	kind oid.Kind
	blob []byte
	tree []objstore.Entry
	// decoded commit/tag, kept as a struct; ReadCommit/ReadTag return a
	// shallow copy of it.
	commit *objstore.CommitObject
	tag    *objstore.TagObject
}

// Store is a content-addressed, in-memory object store. Writes are
// idempotent: hashing the same canonical content twice returns the
// same OID and does not duplicate storage, matching the contract of
// objstore.Store.
type Store struct {
	mu      sync.Mutex
	objects map[oid.OID]*object
	refs    map[string]oid.OID
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{objects: make(map[oid.OID]*object), refs: make(map[string]oid.OID)}
}

func hashOf(kind oid.Kind, canonical []byte) oid.OID {
	sum := sha256.Sum256(append([]byte(kind.String()+"\x00"), canonical...))
	return oid.FromBytes(oid.SHA256, sum[:])
}

func (s *Store) ReadBlob(_ context.Context, id oid.OID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok || o.kind != oid.Blob {
		return nil, objstore.ErrNotFound
	}
	return append([]byte(nil), o.blob...), nil
}

func (s *Store) WriteBlob(_ context.Context, content []byte) (oid.OID, error) {
	id := hashOf(oid.Blob, content)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		s.objects[id] = &object{kind: oid.Blob, blob: append([]byte(nil), content...)}
	}
	return id, nil
}

func (s *Store) ReadTree(_ context.Context, id oid.OID) ([]objstore.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok || o.kind != oid.Tree {
		return nil, objstore.ErrNotFound
	}
	return append([]objstore.Entry(nil), o.tree...), nil
}

func canonicalTree(entries []objstore.Entry) []byte {
	var buf []byte
	for _, e := range entries {
		buf = append(buf, []byte(fmt.Sprintf("%s %d %s %s\x00", e.Mode.String(), e.Kind, e.OID.String(), e.Name))...)
	}
	return buf
}

func (s *Store) WriteTree(_ context.Context, entries []objstore.Entry) (oid.OID, error) {
	id := hashOf(oid.Tree, canonicalTree(entries))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		s.objects[id] = &object{kind: oid.Tree, tree: append([]objstore.Entry(nil), entries...)}
	}
	return id, nil
}

func (s *Store) CreateCommit(_ context.Context, author, committer objstore.Signature, message string, tree oid.OID, parents []oid.OID) (oid.OID, error) {
	c := &objstore.CommitObject{Tree: tree, Parents: append([]oid.OID(nil), parents...), Author: author, Committer: committer, Message: message}
	canon := []byte(fmt.Sprintf("%v", c))
	id := hashOf(oid.Commit, canon)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		s.objects[id] = &object{kind: oid.Commit, commit: c}
	}
	return id, nil
}

func (s *Store) CreateTag(_ context.Context, name string, target oid.OID, targetKind oid.Kind, tagger objstore.Signature, message string) (oid.OID, error) {
	t := &objstore.TagObject{Name: name, Target: target, TargetKind: targetKind, Tagger: tagger, Message: message}
	canon := []byte(fmt.Sprintf("%v", t))
	id := hashOf(oid.Tag, canon)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; !ok {
		s.objects[id] = &object{kind: oid.Tag, tag: t}
	}
	return id, nil
}

func (s *Store) LookupKind(_ context.Context, id oid.OID) (oid.Kind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok {
		return oid.Unknown, objstore.ErrNotFound
	}
	return o.kind, nil
}

func (s *Store) ReadCommit(_ context.Context, id oid.OID) (*objstore.CommitObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok || o.kind != oid.Commit {
		return nil, objstore.ErrNotFound
	}
	c := *o.commit
	return &c, nil
}

func (s *Store) ReadTag(_ context.Context, id oid.OID) (*objstore.TagObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[id]
	if !ok || o.kind != oid.Tag {
		return nil, objstore.ErrNotFound
	}
	t := *o.tag
	return &t, nil
}

func (s *Store) ResolveRef(_ context.Context, name string) (oid.OID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.refs[name]
	if !ok {
		return oid.Zero, objstore.ErrNotFound
	}
	return id, nil
}

func (s *Store) UpdateRef(_ context.Context, name string, oldTarget, newTarget oid.OID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.refs[name]; ok && cur != oldTarget {
		return fmt.Errorf("memstore: ref %q changed concurrently", name)
	}
	s.refs[name] = newTarget
	return nil
}

// SetRef seeds a reference for tests, bypassing the old-value check
// UpdateRef performs.
func (s *Store) SetRef(name string, id oid.OID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[name] = id
}

// PutTree is a test helper that stores entries under a freshly derived
// OID and returns it, equivalent to calling WriteTree directly.
func (s *Store) PutTree(ctx context.Context, entries []objstore.Entry) (oid.OID, error) {
	return s.WriteTree(ctx, entries)
}

// PutBlob is a test helper equivalent to WriteBlob.
func (s *Store) PutBlob(ctx context.Context, content []byte) (oid.OID, error) {
	return s.WriteBlob(ctx, content)
}

var _ objstore.Store = (*Store)(nil)

// DirEntry is a convenience constructor for building trees in tests.
func DirEntry(name string, id oid.OID) objstore.Entry {
	return objstore.Entry{Mode: filemode.Dir, Kind: oid.Tree, OID: id, Name: name}
}

// FileEntry is a convenience constructor for building trees in tests.
func FileEntry(name string, id oid.OID) objstore.Entry {
	return objstore.Entry{Mode: filemode.Regular, Kind: oid.Blob, OID: id, Name: name}
}
