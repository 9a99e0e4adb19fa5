package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/dispatchkit/dispatch/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type runnerStub struct {
	stats core.RunnerStats
}

func (s runnerStub) Stats() core.RunnerStats { return s.stats }

type poolStub struct {
	stats core.PoolStats
}

func (s poolStub) Stats() core.PoolStats { return s.stats }

// Given a poller polling a runner and a pool stub,
// When the poll interval elapses,
// Then their gauges reflect the stubbed snapshots.
func TestSnapshotPoller_CollectsRunnerAndPoolStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddRunner("runner-a", runnerStub{stats: core.RunnerStats{
		Name: "runner-a", Queued: 3, Running: 1,
	}})
	poller.AddPool("pool-a", poolStub{stats: core.PoolStats{
		Name: "pool-a", Size: 8, Queued: 4, Running: 2, Ceiling: 8,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		queued := testutil.ToFloat64(poller.runnerQueued.WithLabelValues("runner-a"))
		active := testutil.ToFloat64(poller.poolRunning.WithLabelValues("pool-a"))
		return queued == 3 && active == 2
	})

	if got := testutil.ToFloat64(poller.poolSize.WithLabelValues("pool-a")); got != 8 {
		t.Fatalf("pool size gauge = %v, want 8", got)
	}
	if got := testutil.ToFloat64(poller.runnerRunning.WithLabelValues("runner-a")); got != 1 {
		t.Fatalf("runner running gauge = %v, want 1", got)
	}
}

// Given a poller,
// When Start/Stop are called more than once in a row,
// Then neither panics nor blocks forever.
func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
