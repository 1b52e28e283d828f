// Package observe provides application-wide observability primitives for
// Intervox: OpenTelemetry metrics, tracing bootstrap, and the instruments
// the interview pipeline records into.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([Default]) is provided for convenience; tests should
// use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all Intervox metrics.
const meterName = "github.com/intervox/intervox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// ServiceRequestDuration tracks interview-service round-trip latency.
	// Use with attribute.String("op", ...).
	ServiceRequestDuration metric.Float64Histogram

	// --- Counters ---

	// SessionsStarted counts interview sessions successfully started.
	SessionsStarted metric.Int64Counter

	// TurnsAppended counts turns added to session history. Use with
	// attribute.String("role", ...).
	TurnsAppended metric.Int64Counter

	// ClassifierRejections counts transcripts replaced by the no-answer
	// sentinel. Use with attribute.String("rule", ...).
	ClassifierRejections metric.Int64Counter

	// RetryAttempts counts automatic retries of recoverable failures. Use
	// with attribute.String("op", ...).
	RetryAttempts metric.Int64Counter

	// ServiceErrors counts classified remote-service failures. Use with
	// attribute.String("op", ...), attribute.String("class", ...).
	ServiceErrors metric.Int64Counter

	// --- Gauges ---

	// PlaybackQueueDepth tracks spoken items waiting in or occupying the
	// playback queue.
	PlaybackQueueDepth metric.Int64UpDownCounter

	// ActiveSessions tracks live interview sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized
// for speech-pipeline and service round-trip latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("intervox.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("intervox.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ServiceRequestDuration, err = m.Float64Histogram("intervox.service.request.duration",
		metric.WithDescription("Latency of interview-service round trips by operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SessionsStarted, err = m.Int64Counter("intervox.sessions.started",
		metric.WithDescription("Interview sessions successfully started."),
	); err != nil {
		return nil, err
	}
	if met.TurnsAppended, err = m.Int64Counter("intervox.turns.appended",
		metric.WithDescription("Turns appended to session history by role."),
	); err != nil {
		return nil, err
	}
	if met.ClassifierRejections, err = m.Int64Counter("intervox.classifier.rejections",
		metric.WithDescription("Transcripts replaced by the no-answer sentinel, by rule."),
	); err != nil {
		return nil, err
	}
	if met.RetryAttempts, err = m.Int64Counter("intervox.retry.attempts",
		metric.WithDescription("Automatic retries of recoverable failures by operation."),
	); err != nil {
		return nil, err
	}
	if met.ServiceErrors, err = m.Int64Counter("intervox.service.errors",
		metric.WithDescription("Classified interview-service failures by operation and class."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.PlaybackQueueDepth, err = m.Int64UpDownCounter("intervox.playback.queue_depth",
		metric.WithDescription("Spoken items waiting in or occupying the playback queue."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("intervox.sessions.active",
		metric.WithDescription("Live interview sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default returns the process-wide [Metrics] instance backed by the global
// meter provider. The first call creates the instruments; creation errors
// fall back to a no-op meter, so Default never returns nil.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			// Instrument creation only fails on malformed names; keep the
			// process alive with no-op instruments.
			m, _ = NewMetrics(noop.NewMeterProvider())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// Attr is a shorthand for string attributes at record sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}
