package rewrite

import (
	"context"
	"fmt"
	"sync"

	"github.com/coldfix/git-filter-tree/modules/objstore"
	"github.com/coldfix/git-filter-tree/modules/oid"
)

// RevListWalker is the external collaborator of spec §1 ("the rev-list
// walker that enumerates starting points"): given a set of reference
// specifications, it yields all commits reachable from them. The
// Driver only consumes this interface; a concrete implementation
// (typically shelling out to `git rev-list`) lives outside this
// package, same as the Object Store Adapter.
type RevListWalker interface {
	Roots(ctx context.Context, refspecs []string) ([]oid.OID, error)
}

// Driver is the Driver component of spec §4.7: it enumerates roots,
// runs the rewrite phase, runs the reference-update phase, and
// persists the root-map.
type Driver struct {
	store       objstore.Store
	engine      *Engine
	sched       *Scheduler
	rootMapPath string
	walker      RevListWalker
}

// NewDriver builds a Driver. walker may be nil if the caller always
// supplies explicit root OIDs rather than reference specifications.
func NewDriver(store objstore.Store, engine *Engine, sched *Scheduler, rootMapPath string, walker RevListWalker) *Driver {
	return &Driver{store: store, engine: engine, sched: sched, rootMapPath: rootMapPath, walker: walker}
}

// RefUpdate is one requested reference retarget (spec §4.7 phase 3).
type RefUpdate struct {
	Name string
}

// RefResult reports what happened to one requested reference.
type RefResult struct {
	Name      string
	Old       oid.OID
	New       oid.OID
	Unchanged bool
}

// RunFromRoots implements spec §4.7 for the "root OIDs on standard
// input" selection mode: only the rewrite phase runs (spec §6,
// "Without --: ... only the rewrite phase runs; no refs are touched").
func (d *Driver) RunFromRoots(ctx context.Context, roots []oid.OID) error {
	_, err := d.rewritePhase(ctx, roots)
	return err
}

// RunFromRefs implements spec §4.7 for the "-- <ref-spec>..." selection
// mode: roots are derived via the rev-list walker, both phases run,
// and the given refs are retargeted.
func (d *Driver) RunFromRefs(ctx context.Context, refspecs []string, refs []RefUpdate) ([]RefResult, error) {
	if d.walker == nil {
		return nil, fmt.Errorf("rewrite: no rev-list walker configured for refspec mode")
	}
	roots, err := d.walker.Roots(ctx, refspecs)
	if err != nil {
		return nil, fmt.Errorf("rewrite: enumerate roots: %w", err)
	}
	rootMap, err := d.rewritePhase(ctx, roots)
	if err != nil {
		return nil, err
	}
	return d.referenceUpdatePhase(ctx, refs, rootMap)
}

// rewritePhase implements spec §4.7 phases 1-2: open the root-map
// (refusing a stale one), enqueue one task per root, drain to
// completion, and return the in-memory old->new mapping it built. Each
// root task immediately recurses into the Engine, which itself
// Enqueues further tasks for the commit's tree and parents — safe
// because Enqueue's orchestration tier is unbounded; only the leaf
// Store calls those tasks eventually make contend for the Scheduler's
// bounded IO executor, so a root task blocked in its own nested
// Enqueue(...).Wait() never starves a sibling root task of anything it
// needs (see Scheduler's doc comment). This holds at any concurrency,
// including 1.
func (d *Driver) rewritePhase(ctx context.Context, roots []oid.OID) (map[oid.OID]oid.OID, error) {
	rm, err := OpenRootMap(d.rootMapPath)
	if err != nil {
		return nil, err
	}
	defer rm.Close()

	result := make(map[oid.OID]oid.OID, len(roots))
	var resultMu sync.Mutex
	tasks := make([]Task, len(roots))
	for i, root := range roots {
		root := root
		tasks[i] = func(ctx context.Context) error {
			newRoot, err := d.engine.RewriteRoot(ctx, root)
			if err != nil {
				return fmt.Errorf("rewrite: root %s: %w", root.String(), err)
			}
			if err := rm.Append(root, newRoot); err != nil {
				return err
			}
			resultMu.Lock()
			result[root] = newRoot
			resultMu.Unlock()
			return nil
		}
	}
	if err := d.sched.Enqueue(ctx, tasks...).Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// referenceUpdatePhase implements spec §4.7 phase 3: resolve each
// requested ref, look up its rewritten target, and retarget it. A ref
// whose old and new targets are equal is logged and skipped, never
// retargeted (spec: "If old equals new, log an unchanged-ref warning
// and skip").
func (d *Driver) referenceUpdatePhase(ctx context.Context, refs []RefUpdate, rootMap map[oid.OID]oid.OID) ([]RefResult, error) {
	results := make([]RefResult, 0, len(refs))
	for _, ref := range refs {
		ref := ref
		old, err := ioDo(ctx, d.sched, func(ctx context.Context) (oid.OID, error) {
			return d.store.ResolveRef(ctx, ref.Name)
		})
		if err != nil {
			return results, fmt.Errorf("rewrite: resolve ref %q: %w", ref.Name, err)
		}
		newTarget, ok := rootMap[old]
		if !ok {
			return results, fmt.Errorf("rewrite: ref %q points at %s, which was not a rewritten root", ref.Name, old.String())
		}
		if newTarget == old {
			results = append(results, RefResult{Name: ref.Name, Old: old, New: newTarget, Unchanged: true})
			continue
		}
		if err := d.sched.IO(ctx, func(ctx context.Context) error {
			return d.store.UpdateRef(ctx, ref.Name, old, newTarget)
		}); err != nil {
			return results, fmt.Errorf("rewrite: update ref %q: %w", ref.Name, err)
		}
		results = append(results, RefResult{Name: ref.Name, Old: old, New: newTarget})
	}
	return results, nil
}
