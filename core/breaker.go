package core

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// errTaskPanicked is reported to the breaker's two-step Allow() callback when
// the guarded task panics; it never escapes Guard itself.
var errTaskPanicked = errors.New("task panicked")

// BreakerConfig tunes the optional panic-circuit-breaker described in
// SPEC_FULL.md §2.2. The zero value is not meant to be used directly — call
// DefaultBreakerConfig.
type BreakerConfig struct {
	// MaxConsecutiveFailures is the number of consecutive task panics on one
	// executor that trips the breaker open.
	MaxConsecutiveFailures uint32
	// CooldownWindow is how long the breaker stays open before allowing a
	// single trial submission through (gobreaker's half-open state).
	CooldownWindow time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxConsecutiveFailures: 10, CooldownWindow: 30 * time.Second}
}

// CircuitBreaker is additive hardening layered in front of an executor's
// Submit/Async path. It never touches the Task Store: when open it rejects
// new submissions (via RejectedTaskHandler) before they ever reach
// Submit/SubmitAfter, and it never manufactures an error return from those
// methods, so §7's "no error codes" default still holds for a zero-value
// executor that installs no breaker.
type CircuitBreaker struct {
	tcb      *gobreaker.TwoStepCircuitBreaker[struct{}]
	rejected RejectedTaskHandler
}

func NewCircuitBreaker(name string, cfg BreakerConfig, rejected RejectedTaskHandler) *CircuitBreaker {
	if rejected == nil {
		rejected = DefaultRejectedTaskHandler{}
	}
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: cfg.CooldownWindow,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxConsecutiveFailures
		},
	}
	return &CircuitBreaker{
		tcb:      gobreaker.NewTwoStepCircuitBreaker[struct{}](settings),
		rejected: rejected,
	}
}

// Guard gates task for submission. If the breaker is open (or the
// half-open trial slot is already taken), it reports the rejection and
// returns ok=false — the caller must not submit task to the Task Store. If
// ok is true, the returned task is task wrapped so that its outcome
// (panic or clean return) is reported back to the breaker; callers must
// submit the returned task, not the original.
func (b *CircuitBreaker) Guard(traits TaskTraits, task Task) (wrapped Task, ok bool) {
	done, err := b.tcb.Allow()
	if err != nil {
		b.rejected.HandleRejected(traits)
		return nil, false
	}
	wrapped = func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				done(errTaskPanicked)
				panic(r)
			}
			done(nil)
		}()
		task(ctx)
	}
	return wrapped, true
}
