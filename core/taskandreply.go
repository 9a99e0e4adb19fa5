package core

import (
	"context"
	"time"
)

// Runner is the common surface SerialExecutor and PoolExecutor both satisfy,
// letting PostTaskAndReply and the repeating-task helpers in this package
// work against either one.
type Runner interface {
	Async(fn Task, traits TaskTraits) TaskID
	AsyncAfter(delay time.Duration, fn Task, traits TaskTraits) TaskID
	Cancel(id TaskID) bool
}

// TaskWithResult produces a value of type T to hand to a ReplyWithResult.
type TaskWithResult[T any] func(ctx context.Context) T

// ReplyWithResult consumes the value produced by a TaskWithResult.
type ReplyWithResult[T any] func(ctx context.Context, result T)

// PostTaskAndReply runs task on source, then — only if task completes
// without panicking — runs reply on dest with task's result. This is the
// teacher's own PostTaskAndReply convenience, regrounded on Async: it is
// pure sugar over two chained Async calls (the task on source submits the
// reply to dest when it returns), and adds no new Task Store semantics.
func PostTaskAndReply[T any](source, dest Runner, task TaskWithResult[T], reply ReplyWithResult[T], traits TaskTraits) {
	source.Async(func(ctx context.Context) {
		result := task(ctx)
		dest.Async(func(replyCtx context.Context) {
			reply(replyCtx, result)
		}, traits)
	}, traits)
}
