package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m.STTDuration == nil || m.TTSDuration == nil || m.ServiceRequestDuration == nil {
		t.Fatal("histogram instruments not initialised")
	}
	if m.SessionsStarted == nil || m.TurnsAppended == nil || m.ClassifierRejections == nil {
		t.Fatal("counter instruments not initialised")
	}
	if m.PlaybackQueueDepth == nil || m.ActiveSessions == nil {
		t.Fatal("gauge instruments not initialised")
	}
}

func TestMetrics_CounterRecordsAttributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.TurnsAppended.Add(ctx, 1, metric.WithAttributes(Attr("role", "interviewer")))
	m.TurnsAppended.Add(ctx, 1, metric.WithAttributes(Attr("role", "candidate")))
	m.TurnsAppended.Add(ctx, 1, metric.WithAttributes(Attr("role", "candidate")))

	rm := collect(t, reader)
	found := findMetric(rm, "intervox.turns.appended")
	if found == nil {
		t.Fatal("intervox.turns.appended not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data type = %T, want Sum[int64]", found.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("total turns = %d, want 3", total)
	}
	if len(sum.DataPoints) != 2 {
		t.Errorf("attribute sets = %d, want 2 (one per role)", len(sum.DataPoints))
	}
}

func TestMetrics_QueueDepthGoesUpAndDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.PlaybackQueueDepth.Add(ctx, 1)
	m.PlaybackQueueDepth.Add(ctx, 1)
	m.PlaybackQueueDepth.Add(ctx, -1)

	rm := collect(t, reader)
	found := findMetric(rm, "intervox.playback.queue_depth")
	if found == nil {
		t.Fatal("intervox.playback.queue_depth not found")
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data type = %T, want Sum[int64]", found.Data)
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("queue depth = %+v, want single data point of 1", sum.DataPoints)
	}
}

func TestDefault_NeverNil(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default returned nil")
	}
	if Default() != Default() {
		t.Fatal("Default not a singleton")
	}
}
