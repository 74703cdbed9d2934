package rewrite

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Task is a unit of scheduled work: a root rewrite, or a recursive
// child rewrite enqueued by one (spec §4.4: "tasks enqueue further
// tasks ... parent rewrites enqueue child rewrites").
type Task func(ctx context.Context) error

// ProgressFunc is invoked once per completed task with the number of
// tasks done so far, the current total (which can still grow after
// this call, per spec §4.4), and the elapsed time since the Scheduler
// was created.
type ProgressFunc func(done, total int64, elapsed time.Duration)

// Scheduler is the two-tier scheduler of spec §4.4 and §5: a
// cooperative orchestration layer that fans recursive rewrite tasks
// out and waits on them (Enqueue/Batch, unbounded — a tree with a
// thousand entries just spawns a thousand cheap goroutines that sit in
// Wait), and a bounded blocking-I/O executor (IO) that gates the only
// operations actually worth bounding: object-store reads/writes and
// external-command invocations. Keeping these separate is what spec §5
// means by "Spawning a child rewrite and awaiting its result": a task
// may recurse and block on its own children without holding a
// concurrency slot hostage, since no slot is acquired until that
// recursion bottoms out in real I/O. Collapsing both tiers into one
// bounded semaphore is a circular-wait deadlock waiting to happen —
// every task dispatched in the same batch as the Scheduler's
// concurrency limit holds a permit for its entire body, including
// while blocked inside a nested Enqueue(...).Wait() for its own
// children, so once that many tasks are in flight none of them can
// ever acquire the permit their children need to make progress.
type Scheduler struct {
	ioSem      *semaphore.Weighted
	done       atomic.Int64
	total      atomic.Int64
	start      time.Time
	onProgress ProgressFunc
}

// NewScheduler creates a Scheduler whose blocking-I/O executor is
// bounded to concurrency slots (the spec's default is
// 2 * runtime.NumCPU()). Orchestration itself is not bounded by this
// value; it is bounded only by how much of the DAG is actually in
// flight at once, which concurrency limits indirectly by gating the
// I/O every branch eventually has to do.
func NewScheduler(concurrency int64, onProgress ProgressFunc) *Scheduler {
	return &Scheduler{
		ioSem:      semaphore.NewWeighted(concurrency),
		start:      time.Now(),
		onProgress: onProgress,
	}
}

// Batch is a set of tasks admitted together by one Enqueue call.
type Batch struct {
	g *errgroup.Group
}

// Wait blocks until every task in this batch (and, transitively, every
// task any of them enqueued and waited on before returning) has
// finished, returning the first non-nil error, if any. A batch's
// internal errgroup context is cancelled as soon as one of its tasks
// errors. Every task of the batch has already started by then (Enqueue
// does not queue), so the cancellation does not stop siblings from
// running; it makes their later IO calls fail once the context is
// done, and it reaches any Store call that honours its context (the
// gitcli Store's subprocesses are started with it and are killed).
func (b *Batch) Wait() error { return b.g.Wait() }

// Enqueue admits tasks onto the unbounded orchestration tier: each
// runs in its own goroutine immediately, with no admission limit of
// its own. A task that needs to block on real I/O — a Store read/write
// or an external command — does so through IO, which is where
// concurrency is actually bounded. It returns immediately; call Wait
// on the result to block for completion.
func (s *Scheduler) Enqueue(ctx context.Context, tasks ...Task) *Batch {
	s.total.Add(int64(len(tasks)))
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			err := t(gctx)
			done := s.done.Add(1)
			if s.onProgress != nil {
				s.onProgress(done, s.total.Load(), time.Since(s.start))
			}
			return err
		})
	}
	return &Batch{g: g}
}

// IO runs fn under the Scheduler's bounded blocking-I/O executor (spec
// §5's "fixed-size blocking-I/O ... pool ... for object-store reads/
// writes"), blocking until a slot is free. Unlike Enqueue, IO never
// recurses into further scheduling — it wraps a single leaf operation
// (a Store call, an external command) — so holding its slot for the
// call's duration cannot deadlock against a sibling's own IO call the
// way holding a task-wide permit could.
func (s *Scheduler) IO(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.ioSem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.ioSem.Release(1)
	return fn(ctx)
}

// ioDo adapts IO to a value-returning operation, the common shape of a
// Store call (read the value, or propagate the error).
func ioDo[V any](ctx context.Context, s *Scheduler, fn func(ctx context.Context) (V, error)) (V, error) {
	var out V
	err := s.IO(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}

// Progress returns the current (done, total) counts and elapsed time,
// for callers that want a snapshot outside the per-completion hook.
func (s *Scheduler) Progress() (done, total int64, elapsed time.Duration) {
	return s.done.Load(), s.total.Load(), time.Since(s.start)
}
