package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SerialExecutor runs every submitted task on a single dedicated goroutine,
// in strict FIFO (ready_at, id) order, never concurrently with itself. It
// wraps a TaskStore with ceiling 1 and lazily spawns its one worker
// goroutine on first submission — grounded on the teacher's
// SingleThreadTaskRunner, which spawns its dedicated goroutine the same
// way, for the same reason: a SerialExecutor that is constructed but never
// used should cost nothing.
type SerialExecutor struct {
	name   string
	id     uuid.UUID
	qos    QoSClass
	store  *TaskStore
	logger Logger

	spawnOnce sync.Once
	started   atomic.Bool
	workerCtx context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSerialExecutor constructs a SerialExecutor. name is used for logging,
// metrics labels and as the default uuid-suffixed identity if empty.
func NewSerialExecutor(name string, opts ...StoreOption) *SerialExecutor {
	id := uuid.New()
	if name == "" {
		name = "serial-" + id.String()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &SerialExecutor{
		name:   name,
		id:     id,
		qos:    QoSDefault,
		logger: NoOpLogger{},
		done:   make(chan struct{}),
		cancel: cancel,
	}
	e.store = NewTaskStore(name, 1, opts...)
	e.workerCtx = withCurrentExecutor(ctx, e)
	return e
}

// Is implements CurrentExecutor: two SerialExecutor handles are the same
// executor iff they share identity.
func (e *SerialExecutor) Is(other CurrentExecutor) bool {
	o, ok := other.(*SerialExecutor)
	return ok && o == e
}

// IsCurrent reports whether ctx was produced by this executor's own worker
// goroutine — the Go analogue of spec.md's "am I running on my own
// executor" thread-identity check.
func (e *SerialExecutor) IsCurrent(ctx context.Context) bool {
	cur := CurrentExecutorFromContext(ctx)
	return cur != nil && cur.Is(e)
}

func (e *SerialExecutor) ensureWorker() {
	e.spawnOnce.Do(func() {
		e.started.Store(true)
		go e.runLoop()
	})
}

func (e *SerialExecutor) runLoop() {
	defer close(e.done)
	for {
		ran, err := e.store.Step(e.workerCtx)
		if err != nil {
			return // workerCtx cancelled: Teardown was called.
		}
		if !ran {
			return // disposed.
		}
	}
}

// Async enqueues fn to run on the worker goroutine, after everything
// already queued. Returns NullTaskID if the executor has been torn down.
func (e *SerialExecutor) Async(fn Task, traits TaskTraits) TaskID {
	e.ensureWorker()
	return e.store.Submit(fn, traits)
}

// AsyncAfter enqueues fn to become eligible no earlier than delay from now.
func (e *SerialExecutor) AsyncAfter(delay time.Duration, fn Task, traits TaskTraits) TaskID {
	e.ensureWorker()
	return e.store.SubmitAfter(delay, fn, traits)
}

// RecentTasks returns a snapshot of this executor's recent execution
// history, oldest first.
func (e *SerialExecutor) RecentTasks() []TaskExecutionRecord {
	return e.store.history.snapshot()
}

// Stats returns a point-in-time snapshot of this executor.
func (e *SerialExecutor) Stats() RunnerStats {
	return RunnerStats{Name: e.name, Queued: e.store.Len(), Running: e.store.Running()}
}

// Cancel removes a not-yet-started task. See TaskStore.Cancel.
func (e *SerialExecutor) Cancel(id TaskID) bool {
	return e.store.Cancel(id)
}

// Sync blocks the caller until every task submitted before this call has
// finished, then runs fn on the calling goroutine, ordered exactly where it
// was submitted relative to other concurrent callers. If the caller is
// already running on this executor's own worker goroutine, Sync still goes
// through the Barrier primitive and blocks until ctx is done: the barrier
// waits for running to reach zero, and the calling task is itself running.
// SafeSync is the variant that runs fn inline in that case.
func (e *SerialExecutor) Sync(ctx context.Context, fn Task) error {
	e.ensureWorker()
	return e.store.Barrier(ctx, fn)
}

// SafeSync is the reentrancy-safe variant: if the caller is already running
// on this executor's own worker goroutine, fn runs immediately, inline,
// with no barrier — calling Sync from inside a task running on the same
// SerialExecutor would otherwise deadlock forever (the barrier can never
// see running==0 because the calling task itself is the thing running).
func (e *SerialExecutor) SafeSync(ctx context.Context, fn Task) error {
	if e.IsCurrent(ctx) {
		fn(ctx)
		return nil
	}
	return e.Sync(ctx, fn)
}

// Teardown stops accepting new work, cancels the worker's context (so a
// blocked Step wakes immediately rather than waiting for future delayed
// tasks), and returns once the worker goroutine has exited. Tasks still
// queued when Teardown is called are abandoned. If no task was ever
// submitted, no worker goroutine was ever spawned (see ensureWorker), so
// there is nothing to wait on — mirroring
// ThreadedDispatchQueue::teardownThread's thread_ != nullptr guard before
// joining.
func (e *SerialExecutor) Teardown() {
	e.store.Dispose()
	e.cancel()
	if e.started.Load() {
		<-e.done
	}
}

// FlushAndTeardown runs every currently-ready task to completion before
// tearing down, so nothing queued-and-ready is silently abandoned. Tasks
// whose ready_at is still in the future are still abandoned, matching
// Flush's own ready-only semantics.
func (e *SerialExecutor) FlushAndTeardown(ctx context.Context) error {
	if !e.store.Disposed() {
		if err := e.store.Barrier(ctx, nil); err != nil {
			return err
		}
	}
	e.store.Dispose()
	e.cancel()
	if e.started.Load() {
		<-e.done
	}
	return nil
}

func (e *SerialExecutor) Name() string   { return e.name }
func (e *SerialExecutor) QoS() QoSClass  { return e.qos }
func (e *SerialExecutor) SetQoS(q QoSClass) { e.qos = q }
func (e *SerialExecutor) Len() int       { return e.store.Len() }
func (e *SerialExecutor) Store() *TaskStore { return e.store }
