package core

// Listener observes emptiness transitions of a Task Store's pending set.
//
// OnNonEmpty fires exactly once per empty->non-empty transition. It runs on
// whichever goroutine performed the submission, while the store's internal
// lock is held — an implementation must not call back into the same Task
// Store (Submit/Cancel/Barrier/Step) from inside it, or it will deadlock.
//
// OnEmpty fires exactly once per non-empty->empty transition. It fires
// from Step, on the worker goroutine whose finished task left the store
// empty, and from Barrier, on the caller's goroutine, when removing the
// barrier's marker leaves the store empty; Step does not fire it merely
// for finding the store empty. A cancellation that empties the store
// does not emit OnEmpty — see SPEC_FULL.md §5 for why this asymmetry is
// kept rather than "fixed".
type Listener interface {
	OnEmpty()
	OnNonEmpty()
}

// ListenerFuncs adapts two plain functions to the Listener interface. A nil
// func is treated as a no-op, so callers can observe only one edge.
type ListenerFuncs struct {
	OnEmptyFunc    func()
	OnNonEmptyFunc func()
}

func (l ListenerFuncs) OnEmpty() {
	if l.OnEmptyFunc != nil {
		l.OnEmptyFunc()
	}
}

func (l ListenerFuncs) OnNonEmpty() {
	if l.OnNonEmptyFunc != nil {
		l.OnNonEmptyFunc()
	}
}
