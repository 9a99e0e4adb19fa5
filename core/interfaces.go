package core

import (
	"context"
	"log"
)

// PanicHandler is invoked, on the worker goroutine that caught it, whenever a
// submitted Task panics. err is always a *pkg/errors* wrapped value carrying
// a stack trace captured at the point of recovery.
//
// A PanicHandler must not block for long and must not call back into the
// Task Store that invoked it (Submit/Cancel/Barrier/Step) — it runs with no
// store lock held, but a reentrant Barrier (Sync) from inside a handler
// running on a SerialExecutor's only worker would deadlock that executor
// forever.
type PanicHandler interface {
	HandlePanic(ctx context.Context, taskID TaskID, err error)
}

// DefaultPanicHandler logs the panic via the standard log package and
// re-panics on the worker goroutine, preserving the teacher's "a panic you
// don't explicitly handle still crashes loudly" default.
type DefaultPanicHandler struct{}

func (DefaultPanicHandler) HandlePanic(_ context.Context, taskID TaskID, err error) {
	log.Printf("dispatch: task %s panicked: %+v", taskID, err)
	panic(err)
}

// RecoveringPanicHandler logs and swallows the panic, letting the worker
// loop continue to the next task. This is the handler `PoolExecutor` and
// `SerialExecutor` install by default, so one bad task cannot take an
// entire pool down; see SPEC_FULL.md §2.2.
type RecoveringPanicHandler struct {
	Logger Logger
}

func (h RecoveringPanicHandler) HandlePanic(_ context.Context, taskID TaskID, err error) {
	logger := h.Logger
	if logger == nil {
		logger = NoOpLogger{}
	}
	logger.Error("task panicked, recovering", Field{Key: "task_id", Value: taskID.String()}, Field{Key: "error", Value: err.Error()})
}

// RejectedTaskHandler is invoked, in place of scheduling the task, whenever a
// submission is rejected for a reason other than store disposal — currently
// only by a tripped CircuitBreaker (see breaker.go). A disposed store always
// silently no-ops per §7 and never reaches a RejectedTaskHandler.
type RejectedTaskHandler interface {
	HandleRejected(traits TaskTraits)
}

// DefaultRejectedTaskHandler logs the rejection and drops the task.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

func (h DefaultRejectedTaskHandler) HandleRejected(traits TaskTraits) {
	logger := h.Logger
	if logger == nil {
		logger = NoOpLogger{}
	}
	logger.Warn("task rejected", Field{Key: "priority", Value: traits.Priority.String()}, Field{Key: "category", Value: traits.Category})
}

// Metrics is the instrumentation seam a Task Store and its executors report
// through. observability/prometheus implements it; NilMetrics is the
// zero-cost default so the core never pays for metrics it wasn't asked for.
type Metrics interface {
	SetQueueDepth(storeName string, depth int)
	SetRunning(storeName string, running int)
	SetCeiling(storeName string, ceiling int)
	SetBarrierPending(storeName string, pending bool)
	IncListenerEdge(storeName string, edge string)
	ObserveTaskDuration(storeName string, category string, seconds float64)
	IncPanic(storeName string)
	IncRejected(storeName string)
}

// NilMetrics discards everything. It is the default Metrics implementation
// for every Task Store and executor constructed without one.
type NilMetrics struct{}

func (NilMetrics) SetQueueDepth(string, int)            {}
func (NilMetrics) SetRunning(string, int)                {}
func (NilMetrics) SetCeiling(string, int)                {}
func (NilMetrics) SetBarrierPending(string, bool)        {}
func (NilMetrics) IncListenerEdge(string, string)         {}
func (NilMetrics) ObserveTaskDuration(string, string, float64) {}
func (NilMetrics) IncPanic(string)                        {}
func (NilMetrics) IncRejected(string)                      {}
