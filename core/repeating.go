package core

import (
	"context"
	"sync/atomic"
	"time"
)

// RepeatingTaskHandle controls the lifecycle of a task scheduled by
// PostRepeatingTask. Stop prevents the next reschedule; a run already in
// flight completes normally, matching the core's no-preemption rule.
type RepeatingTaskHandle struct {
	stopped atomic.Bool
	runner  Runner
	pending atomic.Int64 // current TaskID, for best-effort Cancel on Stop
}

// Stop prevents future reschedules. If the next occurrence has already been
// submitted but is not yet running, Stop also cancels it; if it is already
// running, it completes once and does not reschedule.
func (h *RepeatingTaskHandle) Stop() {
	h.stopped.Store(true)
	if id := TaskID(h.pending.Load()); id != NullTaskID {
		h.runner.Cancel(id)
	}
}

func (h *RepeatingTaskHandle) Stopped() bool {
	return h.stopped.Load()
}

// PostRepeatingTask self-reschedules fn on runner every interval, starting
// after the first interval elapses, until the returned handle is stopped.
// It is the teacher's PostRepeatingTask/RepeatingTaskHandle pattern,
// rebuilt on SubmitAfter — a periodic task is just a task that, on
// completion, submits its own successor. It is still subject to the core's
// pre-execution-only cancellation rule: Stop cannot interrupt a run already
// in progress.
func PostRepeatingTask(runner Runner, interval time.Duration, traits TaskTraits, fn Task) *RepeatingTaskHandle {
	h := &RepeatingTaskHandle{runner: runner}
	var scheduleNext func()
	scheduleNext = func() {
		if h.Stopped() {
			return
		}
		id := runner.AsyncAfter(interval, func(ctx context.Context) {
			fn(ctx)
			scheduleNext()
		}, traits)
		h.pending.Store(int64(id))
	}
	scheduleNext()
	return h
}
