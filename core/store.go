package core

import (
	"context"
	"sync"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/pkg/errors"
)

// storeKey orders entries by (readyAt, id), exactly as spec.md §3 requires:
// ready_at breaks ties by arrival order via the monotonically increasing id.
// This is the same composite-key technique KnightChaser-vrunq's scheduler
// uses for its vruntime-ordered run queue (internal/sched/scheduler.go).
type storeKey struct {
	readyAt int64 // UnixNano
	id      TaskID
}

func compareStoreKeys(a, b any) int {
	ka, kb := a.(storeKey), b.(storeKey)
	switch {
	case ka.readyAt < kb.readyAt:
		return -1
	case ka.readyAt > kb.readyAt:
		return 1
	case ka.id < kb.id:
		return -1
	case ka.id > kb.id:
		return 1
	default:
		return 0
	}
}

type storeEntry struct {
	key       storeKey
	fn        Task
	traits    TaskTraits
	isBarrier bool
}

// TaskStore is the single-writer-lock, time-ordered, cancellable task
// container described in spec.md §3. It holds the mutex/wake-channel pair,
// the (ready_at, id) ordered tree, the running count, the concurrency
// ceiling, the disposed flag, and the listener. SerialExecutor and
// PoolExecutor are thin wrappers around one TaskStore each.
type TaskStore struct {
	name string

	mu   sync.Mutex
	wake chan struct{} // closed and replaced under mu to broadcast a wake

	tree  *redblacktree.Tree
	byID  map[TaskID]storeKey
	nextID TaskID

	running  int
	ceiling  int
	disposed bool

	wasNonEmpty bool
	listener    Listener

	clock        Clock
	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler
	history      *executionHistory
}

// StoreOption configures a TaskStore at construction.
type StoreOption func(*TaskStore)

func WithClock(c Clock) StoreOption          { return func(s *TaskStore) { s.clock = c } }
func WithLogger(l Logger) StoreOption        { return func(s *TaskStore) { s.logger = l } }
func WithMetrics(m Metrics) StoreOption      { return func(s *TaskStore) { s.metrics = m } }
func WithListener(l Listener) StoreOption    { return func(s *TaskStore) { s.listener = l } }
func WithPanicHandler(p PanicHandler) StoreOption {
	return func(s *TaskStore) { s.panicHandler = p }
}
func WithHistoryCapacity(capacity int) StoreOption {
	return func(s *TaskStore) { s.history = newExecutionHistory(capacity) }
}

// NewTaskStore constructs a TaskStore with the given initial ceiling (the
// maximum number of tasks it will let run concurrently; SerialExecutor uses
// 1, PoolExecutor uses its worker count).
func NewTaskStore(name string, ceiling int, opts ...StoreOption) *TaskStore {
	s := &TaskStore{
		name:         name,
		wake:         make(chan struct{}),
		tree:         redblacktree.NewWith(compareStoreKeys),
		byID:         make(map[TaskID]storeKey),
		nextID:       1,
		ceiling:      ceiling,
		clock:        RealClock{},
		logger:       NoOpLogger{},
		metrics:      NilMetrics{},
		panicHandler: RecoveringPanicHandler{},
		history:      newExecutionHistory(defaultHistoryCapacity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// broadcast closes the current wake channel (waking everyone parked on it)
// and installs a fresh one. Must be called with mu held.
func (s *TaskStore) broadcast() {
	close(s.wake)
	s.wake = make(chan struct{})
}

// Submit enqueues fn to run as soon as the store's ceiling allows, ordered
// after every task already present whose ready_at is not later than now
// (delayed tasks still in the future stay behind it). Returns NullTaskID if
// the store has been disposed.
func (s *TaskStore) Submit(fn Task, traits TaskTraits) TaskID {
	return s.submitAt(s.clock.Now(), fn, traits)
}

// SubmitAfter enqueues fn to become ready no earlier than delay from now.
// Returns NullTaskID if the store has been disposed.
func (s *TaskStore) SubmitAfter(delay time.Duration, fn Task, traits TaskTraits) TaskID {
	return s.submitAt(s.clock.Now().Add(delay), fn, traits)
}

func (s *TaskStore) submitAt(readyAt time.Time, fn Task, traits TaskTraits) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return NullTaskID
	}

	id := s.nextID
	s.nextID++
	key := storeKey{readyAt: readyAt.UnixNano(), id: id}
	s.tree.Put(key, &storeEntry{key: key, fn: fn, traits: traits})
	s.byID[id] = key

	if !s.wasNonEmpty {
		s.wasNonEmpty = true
		if s.listener != nil {
			s.listener.OnNonEmpty()
		}
		s.metrics.IncListenerEdge(s.name, "non_empty")
	}
	s.metrics.SetQueueDepth(s.name, s.tree.Size())
	s.broadcast()
	return id
}

// Cancel removes a pending task before it starts running. It returns false
// if id is unknown, already running, or already completed. Per spec.md §9
// and SPEC_FULL.md §5, cancellation never emits OnEmpty even if it empties
// the store — only Step (after running a task) and Barrier (after removing
// its marker) fire that edge.
func (s *TaskStore) Cancel(id TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byID[id]
	if !ok {
		return false
	}
	s.tree.Remove(key)
	delete(s.byID, id)
	s.metrics.SetQueueDepth(s.name, s.tree.Size())
	s.broadcast()
	return true
}

// Barrier blocks the calling goroutine until every task submitted before it
// has finished running, then runs fn inline on the caller's own goroutine,
// ordered exactly where it was inserted relative to concurrently submitted
// tasks; no other task starts while fn runs. It is the Task Store's only
// synchronous primitive: SerialExecutor and PoolExecutor build Sync and
// FlushAndTeardown on top of it.
//
// Barrier does not check the disposed flag — a barrier submitted before
// disposal still runs once its ordering condition is met, mirroring the
// source implementation's DispatchQueue::sync behavior of completing
// in-flight synchronization even past teardown.
func (s *TaskStore) Barrier(ctx context.Context, fn Task) error {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	key := storeKey{readyAt: s.clock.Now().UnixNano(), id: id}
	s.tree.Put(key, &storeEntry{key: key, isBarrier: true})
	s.byID[id] = key
	if !s.wasNonEmpty {
		s.wasNonEmpty = true
		if s.listener != nil {
			s.listener.OnNonEmpty()
		}
		s.metrics.IncListenerEdge(s.name, "non_empty")
	}
	s.metrics.SetBarrierPending(s.name, true)
	s.broadcast()

	for {
		headKey, _ := s.headKeyLocked()
		if s.running == 0 && headKey == key {
			break
		}
		ch := s.wake
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			s.mu.Lock()
			s.tree.Remove(key)
			delete(s.byID, id)
			s.checkEmptyTransitionLocked()
			s.broadcast()
			s.mu.Unlock()
			return ctx.Err()
		}
		s.mu.Lock()
	}

	// The marker stays at the head and holds a running slot while fn runs,
	// so no worker starts another task until fn has returned.
	s.running++
	s.metrics.SetRunning(s.name, s.running)
	s.mu.Unlock()

	if fn != nil {
		s.runGuarded(ctx, id, TaskTraits{Category: "barrier"}, fn)
	}

	s.mu.Lock()
	s.running--
	s.metrics.SetRunning(s.name, s.running)
	s.tree.Remove(key)
	delete(s.byID, id)
	s.checkEmptyTransitionLocked()
	s.metrics.SetBarrierPending(s.name, false)
	s.broadcast()
	s.mu.Unlock()
	return nil
}

// headKeyLocked returns the lowest-ordered key currently in the tree. Must
// be called with mu held.
func (s *TaskStore) headKeyLocked() (storeKey, bool) {
	node := s.tree.Left()
	if node == nil {
		return storeKey{}, false
	}
	return node.Key.(storeKey), true
}

// checkEmptyTransitionLocked fires OnEmpty if removing an entry just
// emptied the tree. Must be called with mu held, after a tree mutation.
func (s *TaskStore) checkEmptyTransitionLocked() {
	s.metrics.SetQueueDepth(s.name, s.tree.Size())
	if s.tree.Size() == 0 && s.wasNonEmpty {
		s.wasNonEmpty = false
		if s.listener != nil {
			s.listener.OnEmpty()
		}
		s.metrics.IncListenerEdge(s.name, "empty")
	}
}

// Step pops and runs the single next eligible task, blocking until one
// becomes eligible, ctx is done, or the store is disposed. It returns
// (true, nil) if a task ran, (false, nil) if the store has been disposed
// (tasks still queued are not run), or (false, err) if ctx was done first. This is the worker loop's only primitive; both
// SerialExecutor and PoolExecutor call it in a tight loop.
func (s *TaskStore) Step(ctx context.Context) (bool, error) {
	s.mu.Lock()
	for {
		if s.disposed {
			s.mu.Unlock()
			return false, nil
		}

		if s.tree.Size() == 0 {
			ch := s.wake
			s.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return false, ctx.Err()
			}
			s.mu.Lock()
			continue
		}

		headKey, _ := s.headKeyLocked()
		headNode, _ := s.tree.Get(headKey)
		head := headNode.(*storeEntry)

		if head.isBarrier {
			// A barrier at the head is owned by its caller's goroutine;
			// workers must wait for it to clear before popping past it.
			ch := s.wake
			s.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return false, ctx.Err()
			}
			s.mu.Lock()
			continue
		}

		now := s.clock.Now()
		readyAt := time.Unix(0, headKey.readyAt)
		if readyAt.After(now) {
			ch := s.wake
			timer := time.NewTimer(readyAt.Sub(now))
			s.mu.Unlock()
			select {
			case <-ch:
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return false, ctx.Err()
			}
			timer.Stop()
			s.mu.Lock()
			continue
		}

		if s.running >= s.ceiling {
			ch := s.wake
			s.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return false, ctx.Err()
			}
			s.mu.Lock()
			continue
		}

		s.tree.Remove(headKey)
		delete(s.byID, headKey.id)
		s.running++
		s.metrics.SetQueueDepth(s.name, s.tree.Size())
		s.metrics.SetRunning(s.name, s.running)
		s.mu.Unlock()

		s.runGuarded(ctx, headKey.id, head.traits, head.fn)

		s.mu.Lock()
		s.running--
		s.metrics.SetRunning(s.name, s.running)
		s.checkEmptyTransitionLocked()
		s.broadcast()
		return true, nil
	}
}

// runGuarded executes fn outside the store lock, recovering any panic and
// routing it to the configured PanicHandler.
func (s *TaskStore) runGuarded(ctx context.Context, id TaskID, traits TaskTraits, fn Task) {
	category := traits.Category
	if category == "" {
		category = "uncategorized"
	}
	start := s.clock.Now()
	defer func() {
		duration := s.clock.Now().Sub(start)
		s.metrics.ObserveTaskDuration(s.name, category, duration.Seconds())
		if r := recover(); r != nil {
			s.metrics.IncPanic(s.name)
			if s.history != nil {
				s.history.record(TaskExecutionRecord{TaskID: id, Category: traits.Category, Priority: traits.Priority, Started: start, Duration: duration, Panicked: true})
			}
			err := errors.Wrapf(asError(r), "task %s panicked", id)
			handler := s.panicHandler
			if handler == nil {
				handler = DefaultPanicHandler{}
			}
			handler.HandlePanic(ctx, id, err)
			return
		}
		if s.history != nil {
			s.history.record(TaskExecutionRecord{TaskID: id, Category: traits.Category, Priority: traits.Priority, Started: start, Duration: duration, Panicked: false})
		}
	}()
	fn(ctx)
}

func asError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errors.Errorf("%v", r)
}

// Flush runs every currently-ready task to completion — calling Step while
// the head task is ready and a running slot is free — and returns how many
// tasks it ran. It does not
// wait for tasks whose ready_at is still in the future; see SPEC_FULL.md §5
// for why this, not the more aspirational "drain everything" reading, is
// the resolved behavior of spec.md §9's open question.
func (s *TaskStore) Flush(ctx context.Context) (int, error) {
	count := 0
	for {
		s.mu.Lock()
		if s.tree.Size() == 0 {
			s.mu.Unlock()
			return count, nil
		}
		headKey, _ := s.headKeyLocked()
		headNode, _ := s.tree.Get(headKey)
		head := headNode.(*storeEntry)
		ready := !head.isBarrier && !time.Unix(0, headKey.readyAt).After(s.clock.Now()) && s.running < s.ceiling
		s.mu.Unlock()
		if !ready {
			return count, nil
		}
		ran, err := s.Step(ctx)
		if err != nil {
			return count, err
		}
		if !ran {
			return count, nil
		}
		count++
	}
}

// FlushUpToNow is an explicit alias for Flush, kept for callers who want the
// less ambiguous name; both resolve spec.md §9's open question identically.
func (s *TaskStore) FlushUpToNow(ctx context.Context) (int, error) {
	return s.Flush(ctx)
}

// SetListener installs l, replacing any previous listener. It does not
// retroactively fire an edge for the store's current emptiness — l only
// observes transitions from here forward.
func (s *TaskStore) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// SetCeiling changes the maximum number of concurrently running tasks and
// wakes any worker that might now be eligible to proceed.
func (s *TaskStore) SetCeiling(ceiling int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ceiling = ceiling
	s.metrics.SetCeiling(s.name, ceiling)
	s.broadcast()
}

// Dispose marks the store as permanently closed to new submissions. Tasks
// already queued are left in place but never run: from here on Step
// returns (false, nil) immediately rather than popping them or blocking.
func (s *TaskStore) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	s.broadcast()
}

func (s *TaskStore) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *TaskStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Size()
}

func (s *TaskStore) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *TaskStore) Ceiling() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ceiling
}
