package core

import (
	"context"
	"fmt"
)

// Task is the unit of work submitted to a Task Store. It is parameterless in
// the sense that callers never pass it arguments directly; ctx is this
// rewrite's stand-in for the source implementation's thread-local "current
// executor" slot, since Go has no native thread-local storage. A Task that
// does not care which executor it is running on may ignore ctx entirely.
type Task func(ctx context.Context)

// TaskID uniquely identifies a Task within the Task Store that assigned it.
// Zero is the reserved "null id" sentinel returned when a submission is
// dropped (the store was disposed). Valid ids are strictly positive,
// monotonically increasing, and never recycled within one store.
type TaskID int64

// NullTaskID is returned by Submit/SubmitAfter when the Task Store has
// already been disposed.
const NullTaskID TaskID = 0

func (id TaskID) String() string {
	return fmt.Sprintf("task-%d", int64(id))
}

// =============================================================================
// TaskTraits: optional, non-scheduling metadata attached to a submission.
// =============================================================================

// TaskPriority is carried through to metrics and logs only. The Task Store's
// pop order is always (ready_at, id); priority never affects ordering,
// concurrency, or fairness — see the Non-goals in SPEC_FULL.md §4.
type TaskPriority int

const (
	TaskPriorityBestEffort TaskPriority = iota
	TaskPriorityUserVisible
	TaskPriorityUserBlocking
)

func (p TaskPriority) String() string {
	switch p {
	case TaskPriorityUserBlocking:
		return "user_blocking"
	case TaskPriorityUserVisible:
		return "user_visible"
	case TaskPriorityBestEffort:
		return "best_effort"
	default:
		return "unknown"
	}
}

// TaskTraits is an observational label attached to a submission: it shows up
// on metrics and in execution history, and nowhere else.
type TaskTraits struct {
	Priority TaskPriority
	Category string
}

func DefaultTaskTraits() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible}
}

func TraitsUserBlocking() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserBlocking}
}

func TraitsBestEffort() TaskTraits {
	return TaskTraits{Priority: TaskPriorityBestEffort}
}

func TraitsUserVisible() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible}
}

// =============================================================================
// Context helper: the Go analogue of the source's per-thread "current
// executor" slot.
// =============================================================================

type currentExecutorKeyType struct{}

var currentExecutorKey currentExecutorKeyType

// CurrentExecutor is the minimal identity every executor shape exposes so a
// running Task can recognize "am I on my own executor".
type CurrentExecutor interface {
	// Is reports whether other is the same executor instance.
	Is(other CurrentExecutor) bool
}

func withCurrentExecutor(ctx context.Context, exec CurrentExecutor) context.Context {
	return context.WithValue(ctx, currentExecutorKey, exec)
}

// CurrentExecutorFromContext retrieves the executor whose worker goroutine is
// running ctx's task, or nil if ctx was not produced by an executor worker
// (e.g. the caller's own background context).
func CurrentExecutorFromContext(ctx context.Context) CurrentExecutor {
	if v := ctx.Value(currentExecutorKey); v != nil {
		return v.(CurrentExecutor)
	}
	return nil
}
