package core

import (
	"sync"
	"time"

	"github.com/hedzr/go-ringbuf/v2"
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/pkg/errors"
)

// TaskExecutionRecord is one entry of an executor's recent-execution
// history, kept from the teacher's observability surface and exposed
// through SerialExecutor.RecentTasks and PoolExecutor.RecentTasks.
type TaskExecutionRecord struct {
	TaskID   TaskID
	Category string
	Priority TaskPriority
	Started  time.Time
	Duration time.Duration
	Panicked bool
}

// RunnerStats is a point-in-time snapshot of a SerialExecutor, mirroring
// PoolExecutor's own PoolStats.
type RunnerStats struct {
	Name    string
	Queued  int
	Running int
}

const defaultHistoryCapacity = 256

// executionHistory is a fixed-capacity, thread-safe recent-task ring,
// rebuilt on github.com/hedzr/go-ringbuf/v2's mpmc.RingBuffer in place of
// the teacher's hand-rolled slice-based ring (core/task_history.go in the
// original), following the same error-returning Enqueue/Dequeue pattern
// simplely77-workerpool's MemoryTaskQueue uses over the same library
// version.
type executionHistory struct {
	mu  sync.Mutex
	rb  mpmc.RingBuffer[TaskExecutionRecord]
	cap int
}

func newExecutionHistory(capacity int) *executionHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &executionHistory{
		rb:  ringbuf.New[TaskExecutionRecord](uint32(capacity)),
		cap: capacity,
	}
}

// record appends rec, evicting the oldest entry first if the ring is full.
func (h *executionHistory) record(rec TaskExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.rb.Enqueue(rec); errors.Is(err, mpmc.ErrQueueFull) {
		_, _ = h.rb.Dequeue()
		_ = h.rb.Enqueue(rec)
	}
}

// snapshot returns the currently buffered records, oldest first. Since the
// underlying ring buffer is consumer-destructive, snapshot drains and
// reloads it under the lock rather than exposing a peek.
func (h *executionHistory) snapshot() []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]TaskExecutionRecord, 0, h.cap)
	for {
		rec, err := h.rb.Dequeue()
		if errors.Is(err, mpmc.ErrQueueEmpty) {
			break
		}
		out = append(out, rec)
	}
	for _, rec := range out {
		_ = h.rb.Enqueue(rec)
	}
	return out
}
