package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func drain(t *testing.T, s *TaskStore, ctx context.Context, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ran, err := s.Step(ctx)
		if err != nil {
			t.Fatalf("Step returned error: %v", err)
		}
		if !ran {
			t.Fatalf("Step returned false before %d tasks ran (at %d)", n, i)
		}
	}
}

// Given a Task Store with ceiling 1,
// When three tasks are submitted in order,
// Then Step runs them in submission order.
func TestTaskStore_FIFOOrdering(t *testing.T) {
	s := NewTaskStore("fifo", 1)
	var mu sync.Mutex
	var order []int

	for i := 0; i < 3; i++ {
		i := i
		s.Submit(func(ctx context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}, DefaultTaskTraits())
	}

	drain(t, s, context.Background(), 3)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Fatalf("expected 3 tasks to run, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("expected FIFO order [0 1 2], got %v", order)
		}
	}
}

// Given a Task Store,
// When a task is cancelled before Step pops it,
// Then it never runs and Cancel reports true.
func TestTaskStore_CancelPreventsExecution(t *testing.T) {
	s := NewTaskStore("cancel", 1)
	ran := false
	id := s.Submit(func(ctx context.Context) { ran = true }, DefaultTaskTraits())

	if ok := s.Cancel(id); !ok {
		t.Fatal("Cancel returned false for a pending task")
	}
	if ok := s.Cancel(id); ok {
		t.Fatal("Cancel returned true for an already-cancelled task")
	}
	if s.Len() != 0 {
		t.Fatalf("expected store to be empty after cancel, got len=%d", s.Len())
	}
	if n, err := s.Flush(context.Background()); err != nil || n != 0 {
		t.Fatalf("expected nothing left to run after cancel, Flush ran %d (err=%v)", n, err)
	}
	if ran {
		t.Fatal("cancelled task ran")
	}
}

// Given a Task Store with ceiling 2,
// When two blocking tasks are submitted,
// Then both run concurrently but a third waits for a slot to free.
func TestTaskStore_CeilingLimitsConcurrency(t *testing.T) {
	s := NewTaskStore("ceiling", 2)
	release := make(chan struct{})
	started := make(chan struct{}, 3)

	for i := 0; i < 2; i++ {
		s.Submit(func(ctx context.Context) {
			started <- struct{}{}
			<-release
		}, DefaultTaskTraits())
	}

	ctx := context.Background()
	go s.Step(ctx)
	go s.Step(ctx)

	<-started
	<-started

	if got := s.Running(); got != 2 {
		t.Fatalf("expected running=2, got %d", got)
	}

	s.Submit(func(ctx context.Context) {
		started <- struct{}{}
		<-release
	}, DefaultTaskTraits())
	go s.Step(ctx)

	select {
	case <-started:
		t.Fatal("third task started while the ceiling was reached")
	case <-time.After(30 * time.Millisecond):
	}
	if got := s.Running(); got != 2 {
		t.Fatalf("expected running to stay at 2, got %d", got)
	}

	close(release)
}

// Given a Task Store,
// When a SubmitAfter task's ready_at is in the future,
// Then Step blocks until that deadline passes.
func TestTaskStore_SubmitAfterRespectsReadyAt(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	s := NewTaskStore("delayed", 1, WithClock(clock))
	ran := make(chan struct{})
	s.SubmitAfter(50*time.Millisecond, func(ctx context.Context) { close(ran) }, DefaultTaskTraits())

	done := make(chan struct{})
	go func() {
		s.Step(context.Background())
		close(done)
	}()

	select {
	case <-ran:
		t.Fatal("task ran before its ready_at deadline")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Hour) // real-time timer still gates Step; this just proves clock alone isn't enough
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Step never completed")
	}
}

// Given a Task Store with a registered Listener,
// When the store transitions empty->non-empty->empty,
// Then OnNonEmpty then OnEmpty fire exactly once each, in that order.
func TestTaskStore_ListenerEdgeAlternation(t *testing.T) {
	s := NewTaskStore("listener", 1)
	var events []string
	var mu sync.Mutex
	s.SetListener(ListenerFuncs{
		OnNonEmptyFunc: func() {
			mu.Lock()
			events = append(events, "non_empty")
			mu.Unlock()
		},
		OnEmptyFunc: func() {
			mu.Lock()
			events = append(events, "empty")
			mu.Unlock()
		},
	})

	s.Submit(func(ctx context.Context) {}, DefaultTaskTraits())
	drain(t, s, context.Background(), 1)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[0] != "non_empty" || events[1] != "empty" {
		t.Fatalf("expected [non_empty empty], got %v", events)
	}
}

// Given a Task Store,
// When Cancel empties the store,
// Then OnEmpty is NOT fired — only Step and Barrier fire that edge.
func TestTaskStore_CancelNeverFiresOnEmpty(t *testing.T) {
	s := NewTaskStore("cancel-edge", 1)
	var onEmptyCalls int
	s.SetListener(ListenerFuncs{OnEmptyFunc: func() { onEmptyCalls++ }})

	id := s.Submit(func(ctx context.Context) {}, DefaultTaskTraits())
	s.Cancel(id)

	if onEmptyCalls != 0 {
		t.Fatalf("expected OnEmpty to never fire on cancel-to-empty, got %d calls", onEmptyCalls)
	}
}

// Given a Task Store,
// When a submitted task panics,
// Then the worker loop survives and keeps draining subsequent tasks.
func TestTaskStore_PanicRecoveredWorkerSurvives(t *testing.T) {
	s := NewTaskStore("panics", 1)
	s.Submit(func(ctx context.Context) { panic("boom") }, DefaultTaskTraits())
	secondRan := false
	s.Submit(func(ctx context.Context) { secondRan = true }, DefaultTaskTraits())

	drain(t, s, context.Background(), 2)

	if !secondRan {
		t.Fatal("second task did not run after the first panicked")
	}
}

// Given a Task Store with one task queued and another running,
// When Barrier is called,
// Then it blocks until both finish, then runs inline.
func TestTaskStore_BarrierWaitsForRunningAndQueued(t *testing.T) {
	s := NewTaskStore("barrier", 1)
	var mu sync.Mutex
	var order []string

	release := make(chan struct{})
	s.Submit(func(ctx context.Context) {
		<-release
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
	}, DefaultTaskTraits())
	s.Submit(func(ctx context.Context) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
	}, DefaultTaskTraits())

	go s.Step(context.Background())
	go s.Step(context.Background())
	time.Sleep(20 * time.Millisecond) // let one worker pick up "first"; "second" stays queued

	barrierDone := make(chan struct{})
	go func() {
		s.Barrier(context.Background(), func(ctx context.Context) {
			mu.Lock()
			order = append(order, "barrier")
			mu.Unlock()
		})
		close(barrierDone)
	}()

	select {
	case <-barrierDone:
		t.Fatal("Barrier returned before the running task finished")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case <-barrierDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Barrier never returned")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "barrier" {
		t.Fatalf("expected [first second barrier], got %v", order)
	}
}

// Given a Task Store with one ready task and one far-future delayed task,
// When Flush is called,
// Then only the ready task runs and Flush returns without waiting on the
// delayed one.
func TestTaskStore_FlushIsReadyOnly(t *testing.T) {
	s := NewTaskStore("flush", 2)
	readyRan := false
	delayedRan := false
	s.Submit(func(ctx context.Context) { readyRan = true }, DefaultTaskTraits())
	s.SubmitAfter(time.Hour, func(ctx context.Context) { delayedRan = true }, DefaultTaskTraits())

	n, err := s.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected Flush to run exactly 1 task, ran %d", n)
	}
	if !readyRan {
		t.Fatal("ready task did not run during Flush")
	}
	if delayedRan {
		t.Fatal("delayed task ran during Flush, violating ready-only semantics")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 task left queued, got %d", s.Len())
	}
}

// Given a disposed Task Store,
// When Submit is called,
// Then it silently returns NullTaskID.
func TestTaskStore_DisposedSubmitIsNoOp(t *testing.T) {
	s := NewTaskStore("disposed", 1)
	s.Dispose()
	id := s.Submit(func(ctx context.Context) {}, DefaultTaskTraits())
	if id != NullTaskID {
		t.Fatalf("expected NullTaskID after dispose, got %v", id)
	}
}

// Given a disposed, empty Task Store,
// When Step is called,
// Then it returns (false, nil) immediately instead of blocking forever.
func TestTaskStore_StepReturnsFalseWhenDrainedAndDisposed(t *testing.T) {
	s := NewTaskStore("drained", 1)
	s.Dispose()

	done := make(chan bool)
	go func() {
		ran, err := s.Step(context.Background())
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		done <- ran
	}()

	select {
	case ran := <-done:
		if ran {
			t.Fatal("Step reported running a task on an empty disposed store")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Step blocked forever on an empty disposed store")
	}
}
