package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/oid"
)

func TestBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, err := s.WriteBlob(ctx, []byte("hello"))
	require.NoError(t, err)

	got, err := s.ReadBlob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestWriteBlobIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, err := s.WriteBlob(ctx, []byte("same"))
	require.NoError(t, err)
	b, err := s.WriteBlob(ctx, []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReadBlobNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.ReadBlob(ctx, oid.New("0123456789abcdef0123456789abcdef01234567"))
	assert.ErrorIs(t, err, objstore.ErrNotFound)
}

func TestTreeRoundTripPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	blobA, _ := s.WriteBlob(ctx, []byte("a"))
	blobB, _ := s.WriteBlob(ctx, []byte("b"))

	treeEntries := []objstore.Entry{
		FileEntry("b.txt", blobB),
		FileEntry("a.txt", blobA),
	}
	id, err := s.WriteTree(ctx, treeEntries)
	require.NoError(t, err)

	got, err := s.ReadTree(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b.txt", got[0].Name)
	assert.Equal(t, "a.txt", got[1].Name)
}

func TestUpdateRefRejectsStaleOld(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := oid.New("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := oid.New("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	c := oid.New("cccccccccccccccccccccccccccccccccccccccc")
	s.SetRef("refs/heads/main", a)

	err := s.UpdateRef(ctx, "refs/heads/main", b, c)
	assert.Error(t, err)

	err = s.UpdateRef(ctx, "refs/heads/main", a, c)
	assert.NoError(t, err)

	got, err := s.ResolveRef(ctx, "refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, c, got)
}
