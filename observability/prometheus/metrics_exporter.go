// Package prometheus adapts core.Metrics onto github.com/prometheus/client_golang,
// generalized from the teacher's per-runner exporter to Task-Store-shaped
// metrics: queue depth, running count, ceiling, barrier-pending, listener
// edges, task duration, panics and rejections — all labeled by store name.
package prometheus

import (
	"errors"
	"fmt"

	"github.com/dispatchkit/dispatch/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	queueDepth     *prom.GaugeVec
	running        *prom.GaugeVec
	ceiling        *prom.GaugeVec
	barrierPending *prom.GaugeVec
	listenerEdges  *prom.CounterVec
	taskDuration   *prom.HistogramVec
	panicTotal     *prom.CounterVec
	rejectedTotal  *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors backing
// core.Metrics. Re-registering against the same Registerer (e.g. across
// repeated test setup) returns the already-registered collectors instead
// of erroring, via registerCollector.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "dispatch"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace, Subsystem: "store", Name: "queue_depth",
		Help: "Number of tasks currently queued (not yet running) in a Task Store.",
	}, []string{"store"})
	runningVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace, Subsystem: "store", Name: "running",
		Help: "Number of tasks currently executing in a Task Store.",
	}, []string{"store"})
	ceilingVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace, Subsystem: "store", Name: "ceiling",
		Help: "Maximum concurrently running tasks allowed in a Task Store.",
	}, []string{"store"})
	barrierPendingVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace, Subsystem: "store", Name: "barrier_pending",
		Help: "1 if a Barrier call is currently waiting on this Task Store, else 0.",
	}, []string{"store"})
	listenerEdgesVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace, Subsystem: "store", Name: "listener_edges_total",
		Help: "Count of OnEmpty/OnNonEmpty listener edge transitions.",
	}, []string{"store", "edge"})
	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace, Subsystem: "task", Name: "duration_seconds",
		Help: "Task execution duration in seconds.", Buckets: buckets,
	}, []string{"store", "category"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace, Subsystem: "task", Name: "panics_total",
		Help: "Count of tasks that panicked during execution.",
	}, []string{"store"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace, Subsystem: "task", Name: "rejected_total",
		Help: "Count of tasks rejected before submission (e.g. by a tripped circuit breaker).",
	}, []string{"store"})

	var err error
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if runningVec, err = registerCollector(reg, runningVec); err != nil {
		return nil, err
	}
	if ceilingVec, err = registerCollector(reg, ceilingVec); err != nil {
		return nil, err
	}
	if barrierPendingVec, err = registerCollector(reg, barrierPendingVec); err != nil {
		return nil, err
	}
	if listenerEdgesVec, err = registerCollector(reg, listenerEdgesVec); err != nil {
		return nil, err
	}
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		queueDepth:     queueDepthVec,
		running:        runningVec,
		ceiling:        ceilingVec,
		barrierPending: barrierPendingVec,
		listenerEdges:  listenerEdgesVec,
		taskDuration:   durationVec,
		panicTotal:     panicVec,
		rejectedTotal:  rejectedVec,
	}, nil
}

func (m *MetricsExporter) SetQueueDepth(store string, depth int) {
	m.queueDepth.WithLabelValues(normalizeLabel(store)).Set(float64(depth))
}

func (m *MetricsExporter) SetRunning(store string, running int) {
	m.running.WithLabelValues(normalizeLabel(store)).Set(float64(running))
}

func (m *MetricsExporter) SetCeiling(store string, ceiling int) {
	m.ceiling.WithLabelValues(normalizeLabel(store)).Set(float64(ceiling))
}

func (m *MetricsExporter) SetBarrierPending(store string, pending bool) {
	v := 0.0
	if pending {
		v = 1.0
	}
	m.barrierPending.WithLabelValues(normalizeLabel(store)).Set(v)
}

func (m *MetricsExporter) IncListenerEdge(store string, edge string) {
	m.listenerEdges.WithLabelValues(normalizeLabel(store), normalizeLabel(edge)).Inc()
}

func (m *MetricsExporter) ObserveTaskDuration(store string, category string, seconds float64) {
	m.taskDuration.WithLabelValues(normalizeLabel(store), normalizeLabel(category)).Observe(seconds)
}

func (m *MetricsExporter) IncPanic(store string) {
	m.panicTotal.WithLabelValues(normalizeLabel(store)).Inc()
}

func (m *MetricsExporter) IncRejected(store string) {
	m.rejectedTotal.WithLabelValues(normalizeLabel(store)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
