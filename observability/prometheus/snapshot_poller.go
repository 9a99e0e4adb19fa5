package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/dispatchkit/dispatch/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// RunnerSnapshotProvider provides current SerialExecutor stats snapshots.
type RunnerSnapshotProvider interface {
	Stats() core.RunnerStats
}

// PoolSnapshotProvider provides current PoolExecutor stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports SerialExecutor/PoolExecutor Stats()
// snapshots into Prometheus gauges, for executors that weren't constructed
// with a core.Metrics already wired in (e.g. ones built by code that predates
// a process's metrics setup, or third-party executors implementing Stats()
// without touching core.TaskStore at all).
type SnapshotPoller struct {
	interval time.Duration

	runnersMu sync.RWMutex
	runners   map[string]RunnerSnapshotProvider

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	runnerQueued  *prom.GaugeVec
	runnerRunning *prom.GaugeVec

	poolQueued  *prom.GaugeVec
	poolRunning *prom.GaugeVec
	poolSize    *prom.GaugeVec
	poolCeiling *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	runnerQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "dispatch", Name: "runner_queued",
		Help: "Number of queued tasks per SerialExecutor.",
	}, []string{"runner"})
	runnerRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "dispatch", Name: "runner_running",
		Help: "Number of running tasks per SerialExecutor (0 or 1).",
	}, []string{"runner"})

	poolQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "dispatch", Name: "pool_queued",
		Help: "Queued tasks per PoolExecutor.",
	}, []string{"pool"})
	poolRunning := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "dispatch", Name: "pool_running",
		Help: "Running tasks per PoolExecutor.",
	}, []string{"pool"})
	poolSize := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "dispatch", Name: "pool_size",
		Help: "Worker goroutine count per PoolExecutor.",
	}, []string{"pool"})
	poolCeiling := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "dispatch", Name: "pool_ceiling",
		Help: "Concurrency ceiling per PoolExecutor.",
	}, []string{"pool"})

	var err error
	if runnerQueued, err = registerCollector(reg, runnerQueued); err != nil {
		return nil, err
	}
	if runnerRunning, err = registerCollector(reg, runnerRunning); err != nil {
		return nil, err
	}
	if poolQueued, err = registerCollector(reg, poolQueued); err != nil {
		return nil, err
	}
	if poolRunning, err = registerCollector(reg, poolRunning); err != nil {
		return nil, err
	}
	if poolSize, err = registerCollector(reg, poolSize); err != nil {
		return nil, err
	}
	if poolCeiling, err = registerCollector(reg, poolCeiling); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:      interval,
		runners:       make(map[string]RunnerSnapshotProvider),
		pools:         make(map[string]PoolSnapshotProvider),
		runnerQueued:  runnerQueued,
		runnerRunning: runnerRunning,
		poolQueued:    poolQueued,
		poolRunning:   poolRunning,
		poolSize:      poolSize,
		poolCeiling:   poolCeiling,
	}, nil
}

// AddRunner adds or replaces a runner snapshot provider by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name)
	p.runnersMu.Lock()
	p.runners[name] = provider
	p.runnersMu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name)
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.runnersMu.RLock()
	for name, provider := range p.runners {
		stats := provider.Stats()
		p.runnerQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.runnerRunning.WithLabelValues(name).Set(float64(stats.Running))
	}
	p.runnersMu.RUnlock()

	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolRunning.WithLabelValues(name).Set(float64(stats.Running))
		p.poolSize.WithLabelValues(name).Set(float64(stats.Size))
		p.poolCeiling.WithLabelValues(name).Set(float64(stats.Ceiling))
	}
	p.poolsMu.RUnlock()
}
