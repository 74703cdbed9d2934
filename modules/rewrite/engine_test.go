package rewrite_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/objstore/memstore"
	"github.com/coldfix/git-filter-tree/modules/oid"
	"github.com/coldfix/git-filter-tree/modules/rewrite"
)

// identityFilter passes every blob through unchanged but counts calls,
// used to assert the fixed-point and memoization properties.
type identityFilter struct {
	calls atomic.Int32
}

func (f *identityFilter) RewriteFile(_ context.Context, e objstore.Entry) ([]objstore.Entry, error) {
	f.calls.Add(1)
	return []objstore.Entry{e}, nil
}

// dropFilter deletes any blob named "drop.txt".
type dropFilter struct{}

func (dropFilter) RewriteFile(_ context.Context, e objstore.Entry) ([]objstore.Entry, error) {
	if e.Name == "drop.txt" {
		return nil, nil
	}
	return []objstore.Entry{e}, nil
}

// collidingFilter renames every blob to the same name, to exercise
// NameCollisionError.
type collidingFilter struct{}

func (collidingFilter) RewriteFile(_ context.Context, e objstore.Entry) ([]objstore.Entry, error) {
	e.Name = "collision"
	return []objstore.Entry{e}, nil
}

func buildSimpleTree(t *testing.T, ctx context.Context, store *memstore.Store) oid.OID {
	t.Helper()
	a, err := store.WriteBlob(ctx, []byte("a"))
	require.NoError(t, err)
	b, err := store.WriteBlob(ctx, []byte("b"))
	require.NoError(t, err)
	root, err := store.WriteTree(ctx, []objstore.Entry{
		memstore.FileEntry("a.txt", a),
		memstore.FileEntry("b.txt", b),
	})
	require.NoError(t, err)
	return root
}

func TestRewriteRootFixedPoint(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	root := buildSimpleTree(t, ctx, store)

	filter := &identityFilter{}
	sched := rewrite.NewScheduler(4, nil)
	engine := rewrite.NewEngine(store, filter, sched, rewrite.TagConservative)

	newRoot, err := engine.RewriteRoot(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, root, newRoot, "identity rewrite must return the original OID, not write a new tree")
}

func TestRewriteRootMemoizesPerObject(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	sharedBlob, err := store.WriteBlob(ctx, []byte("shared"))
	require.NoError(t, err)
	subtree, err := store.WriteTree(ctx, []objstore.Entry{memstore.FileEntry("x.txt", sharedBlob)})
	require.NoError(t, err)
	root, err := store.WriteTree(ctx, []objstore.Entry{
		memstore.DirEntry("left", subtree),
		memstore.DirEntry("right", subtree),
	})
	require.NoError(t, err)

	filter := &identityFilter{}
	sched := rewrite.NewScheduler(4, nil)
	engine := rewrite.NewEngine(store, filter, sched, rewrite.TagConservative)

	newRoot, err := engine.RewriteRoot(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, root, newRoot)
	// The shared subtree's single blob is visited through two different
	// paths (left/x.txt and right/x.txt); FullKey includes path, so
	// each location is computed once, not memoized across each other.
	assert.Equal(t, int32(2), filter.calls.Load())
}

func TestRewriteDropsEntry(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	a, _ := store.WriteBlob(ctx, []byte("keep"))
	d, _ := store.WriteBlob(ctx, []byte("drop"))
	root, err := store.WriteTree(ctx, []objstore.Entry{
		memstore.FileEntry("keep.txt", a),
		memstore.FileEntry("drop.txt", d),
	})
	require.NoError(t, err)

	sched := rewrite.NewScheduler(4, nil)
	engine := rewrite.NewEngine(store, dropFilter{}, sched, rewrite.TagConservative)

	newRoot, err := engine.RewriteRoot(ctx, root)
	require.NoError(t, err)
	assert.NotEqual(t, root, newRoot)

	entries, err := store.ReadTree(ctx, newRoot)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep.txt", entries[0].Name)
}

func TestRewriteDetectsNameCollision(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	root := buildSimpleTree(t, ctx, store)

	sched := rewrite.NewScheduler(4, nil)
	engine := rewrite.NewEngine(store, collidingFilter{}, sched, rewrite.TagConservative)

	_, err := engine.RewriteRoot(ctx, root)
	require.Error(t, err)
	assert.True(t, rewrite.IsNameCollision(err))
}

func TestRewriteRootCommitPreservesMetadataOnFixedPoint(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	root := buildSimpleTree(t, ctx, store)
	author := objstore.Signature{Name: "A", Email: "a@example.com"}
	commit, err := store.CreateCommit(ctx, author, author, "msg", root, nil)
	require.NoError(t, err)

	filter := &identityFilter{}
	sched := rewrite.NewScheduler(4, nil)
	engine := rewrite.NewEngine(store, filter, sched, rewrite.TagConservative)

	newCommit, err := engine.RewriteRoot(ctx, commit)
	require.NoError(t, err)
	assert.Equal(t, commit, newCommit, "an unchanged tree and no parents must fixed-point the commit itself")
}

func TestRewriteRootCommitRewritesWhenTreeChanges(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	a, _ := store.WriteBlob(ctx, []byte("keep"))
	d, _ := store.WriteBlob(ctx, []byte("drop"))
	root, err := store.WriteTree(ctx, []objstore.Entry{
		memstore.FileEntry("keep.txt", a),
		memstore.FileEntry("drop.txt", d),
	})
	require.NoError(t, err)
	author := objstore.Signature{Name: "A", Email: "a@example.com"}
	commit, err := store.CreateCommit(ctx, author, author, "msg", root, nil)
	require.NoError(t, err)

	sched := rewrite.NewScheduler(4, nil)
	engine := rewrite.NewEngine(store, dropFilter{}, sched, rewrite.TagConservative)

	newCommit, err := engine.RewriteRoot(ctx, commit)
	require.NoError(t, err)
	assert.NotEqual(t, commit, newCommit)

	decoded, err := store.ReadCommit(ctx, newCommit)
	require.NoError(t, err)
	assert.Equal(t, "msg", decoded.Message)
	assert.Equal(t, author.Name, decoded.Author.Name)
}
