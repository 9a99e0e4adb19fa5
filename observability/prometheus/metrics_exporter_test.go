package prometheus

import (
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

// Given a fresh MetricsExporter,
// When each core.Metrics method is called once for a store,
// Then the matching Prometheus collector reflects it.
func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("dispatch", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.ObserveTaskDuration("store-a", "user_visible", 0.25)
	exporter.IncPanic("store-a")
	exporter.SetQueueDepth("store-a", 7)
	exporter.IncRejected("store-a")
	exporter.SetRunning("store-a", 2)
	exporter.SetCeiling("store-a", 4)
	exporter.SetBarrierPending("store-a", true)
	exporter.IncListenerEdge("store-a", "non_empty")

	if got := testutil.ToFloat64(exporter.panicTotal.WithLabelValues("store-a")); got != 1 {
		t.Fatalf("panic total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.queueDepth.WithLabelValues("store-a")); got != 7 {
		t.Fatalf("queue depth = %v, want 7", got)
	}
	if got := testutil.ToFloat64(exporter.rejectedTotal.WithLabelValues("store-a")); got != 1 {
		t.Fatalf("rejected total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.running.WithLabelValues("store-a")); got != 2 {
		t.Fatalf("running = %v, want 2", got)
	}
	if got := testutil.ToFloat64(exporter.ceiling.WithLabelValues("store-a")); got != 4 {
		t.Fatalf("ceiling = %v, want 4", got)
	}
	if got := testutil.ToFloat64(exporter.barrierPending.WithLabelValues("store-a")); got != 1 {
		t.Fatalf("barrier pending = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.listenerEdges.WithLabelValues("store-a", "non_empty")); got != 1 {
		t.Fatalf("listener edges = %v, want 1", got)
	}

	histCount, err := histogramSampleCount(exporter.taskDuration.WithLabelValues("store-a", "user_visible"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount != 1 {
		t.Fatalf("duration sample count = %d, want 1", histCount)
	}
}

// Given two exporters registered against the same Registerer,
// When both record against the same store label,
// Then they share the underlying collector rather than erroring on
// double-registration.
func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("dispatch", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("dispatch", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.IncPanic("store-a")
	second.IncPanic("store-a")

	got := testutil.ToFloat64(first.panicTotal.WithLabelValues("store-a"))
	if got != 2 {
		t.Fatalf("shared panic counter = %v, want 2", got)
	}
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
