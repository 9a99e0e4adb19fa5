// Package dispatch is an in-process task dispatcher: a time-ordered,
// cancellable Task Store, and two executors built on top of it — a
// SerialExecutor that runs tasks one at a time on a single dedicated
// goroutine, and a PoolExecutor that runs them across N worker goroutines.
//
// # Quick Start
//
//	pool := core.NewPoolExecutor("workers", 4)
//	defer pool.Teardown()
//
//	pool.Async(func(ctx context.Context) {
//		// runs on one of the pool's worker goroutines
//	}, core.DefaultTaskTraits())
//
// A SerialExecutor guarantees its tasks never run concurrently with each
// other, so code scheduled on one never needs its own locking:
//
//	serial := core.NewSerialExecutor("state-owner")
//	defer serial.Teardown()
//
//	serial.Async(func(ctx context.Context) {
//		// guaranteed not to overlap with any other task on serial
//	}, core.DefaultTaskTraits())
//
// # Key concepts
//
// TaskStore orders pending tasks by (ready_at, id) and enforces a
// concurrency ceiling; Submit/SubmitAfter/Cancel/Barrier/Step are its core
// operations, and SerialExecutor/PoolExecutor are just a ceiling choice
// and a worker-goroutine count layered on top of one.
//
// TaskTraits carries priority and category purely as an observability
// label — it never affects which task runs next. The store's pop order is
// always strictly (ready_at, id).
//
// Sync/SafeSync block the caller until everything submitted earlier has
// finished, then run a callable inline, built on TaskStore's Barrier
// primitive.
//
// # Thread safety
//
// A SerialExecutor provides strict FIFO execution: tasks posted to it never
// run concurrently with each other, so resources it owns exclusively need
// no additional locking from inside those tasks.
//
// For more details, see SPEC_FULL.md and DESIGN.md in the module root.
package dispatch
