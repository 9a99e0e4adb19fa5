package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PoolExecutor runs submitted tasks across N eagerly spawned worker
// goroutines, drawing from a single TaskStore whose ceiling is pinned to N.
// Ordering across workers is best-effort FIFO: the (ready_at, id) order is
// respected for which task is handed out next, but with N>1 workers,
// completion order is not guaranteed to match submission order. Grounded on
// the teacher's ParallelTaskRunner, generalized onto the new TaskStore and
// supervised with an errgroup (aristath-orchestrator's dependency) instead
// of a bare WaitGroup, so a worker that returns a non-panic fatal error is
// observable from Wait during teardown.
type PoolExecutor struct {
	name   string
	id     uuid.UUID
	qos    QoSClass
	size   int
	store  *TaskStore
	logger Logger

	workerCtx context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
}

// NewPoolExecutor constructs a PoolExecutor with size eagerly spawned
// worker goroutines, all drawing from one TaskStore with ceiling==size.
func NewPoolExecutor(name string, size int, opts ...StoreOption) *PoolExecutor {
	if size < 1 {
		size = 1
	}
	id := uuid.New()
	if name == "" {
		name = "pool-" + id.String()
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	e := &PoolExecutor{
		name:      name,
		id:        id,
		qos:       QoSDefault,
		size:      size,
		logger:    NoOpLogger{},
		cancel:    cancel,
		group:     group,
	}
	e.store = NewTaskStore(name, size, opts...)
	e.workerCtx = withCurrentExecutor(gctx, e)

	for i := 0; i < size; i++ {
		group.Go(e.runWorker)
	}
	return e
}

// Is implements CurrentExecutor: two PoolExecutor handles are the same
// executor iff they share identity. Individual worker goroutines within the
// same pool are not distinguished — the source implementation's
// ThreadPoolDispatchQueue offers no per-worker identity either, only
// "am I one of this pool's workers".
func (e *PoolExecutor) Is(other CurrentExecutor) bool {
	o, ok := other.(*PoolExecutor)
	return ok && o == e
}

// IsCurrent reports whether ctx is running on one of this pool's own
// worker goroutines.
func (e *PoolExecutor) IsCurrent(ctx context.Context) bool {
	cur := CurrentExecutorFromContext(ctx)
	return cur != nil && cur.Is(e)
}

func (e *PoolExecutor) runWorker() error {
	for {
		_, err := e.store.Step(e.workerCtx)
		if err != nil {
			return nil // workerCtx cancelled: Teardown was called.
		}
		select {
		case <-e.workerCtx.Done():
			return nil
		default:
		}
	}
}

// Async enqueues fn to run on whichever worker next becomes free. Returns
// NullTaskID if the executor has been torn down.
func (e *PoolExecutor) Async(fn Task, traits TaskTraits) TaskID {
	return e.store.Submit(fn, traits)
}

// AsyncAfter enqueues fn to become eligible no earlier than delay from now.
func (e *PoolExecutor) AsyncAfter(delay time.Duration, fn Task, traits TaskTraits) TaskID {
	return e.store.SubmitAfter(delay, fn, traits)
}

// Cancel removes a not-yet-started task. See TaskStore.Cancel.
func (e *PoolExecutor) Cancel(id TaskID) bool {
	return e.store.Cancel(id)
}

// Sync blocks the caller until every task submitted before this call has
// finished across all workers, then runs fn inline on the calling
// goroutine.
//
// Resolved open question (SPEC_FULL.md §5): when Sync is called from
// *inside* one of this pool's own worker goroutines, it runs fn inline
// immediately, with no barrier exclusion from sibling workers — the
// calling worker is itself one of the "running" tasks the barrier would
// otherwise wait to drain, and pool workers are interchangeable, so there
// is no single "self" to special-case the way SerialExecutor's SafeSync
// does. This package has no future-based Sync variant, so from inside one
// of this pool's workers Sync gives no barrier exclusion at all.
func (e *PoolExecutor) Sync(ctx context.Context, fn Task) error {
	if e.IsCurrent(ctx) {
		fn(ctx)
		return nil
	}
	return e.store.Barrier(ctx, fn)
}

// Teardown stops accepting new work, cancels every worker's context, and
// waits for all of them to exit. Tasks still queued are abandoned.
func (e *PoolExecutor) Teardown() error {
	e.store.Dispose()
	e.cancel()
	return e.group.Wait()
}

// FlushAndTeardown runs every currently-ready task to completion before
// tearing down. See SerialExecutor.FlushAndTeardown for the ready-only
// caveat.
func (e *PoolExecutor) FlushAndTeardown(ctx context.Context) error {
	if !e.store.Disposed() {
		if err := e.store.Barrier(ctx, nil); err != nil {
			e.store.Dispose()
			e.cancel()
			e.group.Wait()
			return err
		}
	}
	e.store.Dispose()
	e.cancel()
	return e.group.Wait()
}

func (e *PoolExecutor) Name() string       { return e.name }
func (e *PoolExecutor) QoS() QoSClass      { return e.qos }
func (e *PoolExecutor) SetQoS(q QoSClass)  { e.qos = q }
func (e *PoolExecutor) Size() int          { return e.size }
func (e *PoolExecutor) Len() int           { return e.store.Len() }
func (e *PoolExecutor) Running() int       { return e.store.Running() }
func (e *PoolExecutor) Store() *TaskStore  { return e.store }

// Stats is a point-in-time snapshot suitable for cmd/dispatchtop and
// internal/httpapi's /stats endpoint.
type PoolStats struct {
	Name     string
	Size     int
	Queued   int
	Running  int
	Ceiling  int
}

func (e *PoolExecutor) Stats() PoolStats {
	return PoolStats{
		Name:    e.name,
		Size:    e.size,
		Queued:  e.store.Len(),
		Running: e.store.Running(),
		Ceiling: e.store.Ceiling(),
	}
}

// RecentTasks returns a snapshot of this pool's recent execution history
// across all workers, oldest first.
func (e *PoolExecutor) RecentTasks() []TaskExecutionRecord {
	return e.store.history.snapshot()
}
