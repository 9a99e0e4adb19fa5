package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

// Given a freshly constructed SerialExecutor with no tasks posted yet,
// When Async is never called,
// Then no worker goroutine is spawned — Teardown returns immediately.
func TestSerialExecutor_LazyWorkerSpawn(t *testing.T) {
	e := NewSerialExecutor("lazy")
	done := make(chan struct{})
	go func() {
		e.Teardown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Teardown of an unused SerialExecutor should not block")
	}
}

// Given a SerialExecutor,
// When several tasks are posted concurrently from multiple goroutines,
// Then they all run, and never run concurrently with each other.
func TestSerialExecutor_NeverRunsConcurrently(t *testing.T) {
	e := NewSerialExecutor("serial")
	defer e.Teardown()

	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Async(func(ctx context.Context) {
				mu.Lock()
				inFlight++
				if inFlight > maxInFlight {
					maxInFlight = inFlight
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()
			}, DefaultTaskTraits())
		}()
	}
	wg.Wait()

	if err := e.FlushAndTeardown(context.Background()); err != nil {
		t.Fatalf("FlushAndTeardown failed: %v", err)
	}

	if maxInFlight > 1 {
		t.Fatalf("expected at most 1 task in flight at once, saw %d", maxInFlight)
	}
}

// Given a SerialExecutor,
// When Sync is called from an unrelated goroutine,
// Then it blocks until everything queued before it has finished.
func TestSerialExecutor_SyncWaitsForQueuedWork(t *testing.T) {
	e := NewSerialExecutor("sync")
	defer e.Teardown()

	var mu sync.Mutex
	order := []string{}

	e.Async(func(ctx context.Context) {
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		order = append(order, "task")
		mu.Unlock()
	}, DefaultTaskTraits())

	if err := e.Sync(context.Background(), func(ctx context.Context) {
		mu.Lock()
		order = append(order, "sync")
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "task" || order[1] != "sync" {
		t.Fatalf("expected [task sync], got %v", order)
	}
}

// Given a task running on a SerialExecutor's own worker,
// When it calls SafeSync on the same executor,
// Then it runs inline immediately instead of deadlocking against itself.
func TestSerialExecutor_SafeSyncAvoidsSelfDeadlock(t *testing.T) {
	e := NewSerialExecutor("safe-sync")
	defer e.Teardown()

	done := make(chan struct{})
	e.Async(func(ctx context.Context) {
		ran := false
		if err := e.SafeSync(ctx, func(ctx context.Context) { ran = true }); err != nil {
			t.Errorf("SafeSync returned error: %v", err)
		}
		if !ran {
			t.Error("SafeSync did not run its callable inline")
		}
		close(done)
	}, DefaultTaskTraits())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SafeSync deadlocked against its own executor")
	}
}

// Given a task running on a SerialExecutor's own worker,
// When IsCurrent is checked against its own context,
// Then it reports true; against a different executor's ctx, false.
func TestSerialExecutor_IsCurrent(t *testing.T) {
	e1 := NewSerialExecutor("e1")
	e2 := NewSerialExecutor("e2")
	defer e1.Teardown()
	defer e2.Teardown()

	done := make(chan struct{})
	e1.Async(func(ctx context.Context) {
		if !e1.IsCurrent(ctx) {
			t.Error("expected e1.IsCurrent(ctx) to be true on e1's own worker")
		}
		if e2.IsCurrent(ctx) {
			t.Error("expected e2.IsCurrent(ctx) to be false on e1's worker")
		}
		close(done)
	}, DefaultTaskTraits())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}
