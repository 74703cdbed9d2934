package rewrite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/objstore/memstore"
	"github.com/coldfix/git-filter-tree/modules/oid"
)

// driverDropFilter deletes any blob named "drop.txt", forcing every
// commit's tree (and therefore the commit itself) to be rewritten
// rather than fixed-pointed — the shape that exercises
// rewriteRootCommit's mandatory nested Enqueue for its own tree.
type driverDropFilter struct{}

func (driverDropFilter) RewriteFile(_ context.Context, e objstore.Entry) ([]objstore.Entry, error) {
	if e.Name == "drop.txt" {
		return nil, nil
	}
	return []objstore.Entry{e}, nil
}

func buildNonTrivialCommit(t *testing.T, ctx context.Context, store *memstore.Store, seed string) oid.OID {
	t.Helper()
	keep, err := store.WriteBlob(ctx, []byte("keep-"+seed))
	require.NoError(t, err)
	drop, err := store.WriteBlob(ctx, []byte("drop-"+seed))
	require.NoError(t, err)
	tree, err := store.WriteTree(ctx, []objstore.Entry{
		memstore.FileEntry("keep.txt", keep),
		memstore.FileEntry("drop.txt", drop),
	})
	require.NoError(t, err)
	author := objstore.Signature{Name: "A", Email: "a@example.com"}
	commit, err := store.CreateCommit(ctx, author, author, "msg-"+seed, tree, nil)
	require.NoError(t, err)
	return commit
}

// TestDriverRewritesMultipleRootsAtLowConcurrency is the Driver-level
// regression the maintainer's review asked for: dispatch at least
// `concurrency` independent, non-trivial commits (each requiring its
// own tree sub-rewrite) through RunFromRoots, at concurrency as low as
// 1. Before the Scheduler's two-tier split, every root task held its
// one and only permit while blocked on the nested Enqueue its own
// rewriteRootCommit issues for the commit's tree, so this deadlocked
// outright at concurrency=1 and at concurrency equal to the number of
// roots. This is the one code path (driver.go's rewritePhase) that
// dispatches multiple roots through the Scheduler, and no prior test
// in this package went through it.
func TestDriverRewritesMultipleRootsAtLowConcurrency(t *testing.T) {
	for _, concurrency := range []int64{1, 2} {
		concurrency := concurrency
		t.Run("", func(t *testing.T) {
			ctx := context.Background()
			store := memstore.New()
			roots := []oid.OID{
				buildNonTrivialCommit(t, ctx, store, "one"),
				buildNonTrivialCommit(t, ctx, store, "two"),
			}

			sched := NewScheduler(concurrency, nil)
			engine := NewEngine(store, driverDropFilter{}, sched, TagConservative)
			rootMapPath := filepath.Join(t.TempDir(), "root-map")
			driver := NewDriver(store, engine, sched, rootMapPath, nil)

			done := make(chan error, 1)
			go func() { done <- driver.RunFromRoots(ctx, roots) }()
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatalf("deadlocked: RunFromRoots never returned at concurrency=%d", concurrency)
			}

			loaded, err := LoadRootMap(rootMapPath)
			require.NoError(t, err)
			require.Len(t, loaded, 2)
			for _, root := range roots {
				newRoot, ok := loaded[root]
				require.True(t, ok, "root-map missing entry for %s", root.String())
				assert.NotEqual(t, root, newRoot, "drop.txt removal must change every commit")
			}
		})
	}
}
