// Package observe provides observability primitives for voxkit: OpenTelemetry
// metrics, tracing helpers, and HTTP middleware for the admin server.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the admin server's /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
//
// None of the instruments are recorded from the audio callback — wake events
// are counted by the event dispatcher, and transcription metrics are recorded
// on the control thread.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxkit metrics.
const meterName = "github.com/voxkit/voxkit"

// Metrics holds all OpenTelemetry metric instruments for the voice pipeline.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// WakeDetections counts wake notifications raised by the energy detector.
	WakeDetections metric.Int64Counter

	// Transcriptions counts StartTranscription outcomes. Use with attribute:
	//   attribute.String("status", "ok"|"empty"|"error")
	Transcriptions metric.Int64Counter

	// RecordingDuration tracks captured utterance length in seconds.
	RecordingDuration metric.Float64Histogram

	// TranscriptionDuration tracks wall-clock decode latency in seconds.
	TranscriptionDuration metric.Float64Histogram

	// PipelineUp tracks whether the capture stream is running (0 or 1).
	PipelineUp metric.Int64UpDownCounter

	// HTTPRequestDuration tracks admin server request latency. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// durationBuckets defines histogram bucket boundaries (in seconds) sized for
// utterance lengths and whisper decode latencies.
var durationBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.WakeDetections, err = m.Int64Counter("voxkit.wake.detections",
		metric.WithDescription("Total wake notifications raised by the energy detector."),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("voxkit.transcriptions",
		metric.WithDescription("Total transcription attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.RecordingDuration, err = m.Float64Histogram("voxkit.recording.duration",
		metric.WithDescription("Length of captured utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("voxkit.transcription.duration",
		metric.WithDescription("Wall-clock speech-to-text decode latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineUp, err = m.Int64UpDownCounter("voxkit.pipeline.up",
		metric.WithDescription("Whether the audio capture stream is running."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxkit.http.request.duration",
		metric.WithDescription("Admin server request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordWakeDetection increments the wake-detection counter.
func (m *Metrics) RecordWakeDetection(ctx context.Context) {
	m.WakeDetections.Add(ctx, 1)
}

// RecordTranscription records one StartTranscription outcome together with
// the captured recording length.
func (m *Metrics) RecordTranscription(ctx context.Context, status string, recordingSeconds float64) {
	m.Transcriptions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	if recordingSeconds > 0 {
		m.RecordingDuration.Record(ctx, recordingSeconds)
	}
}

// RecordDecodeLatency records the wall-clock time one decode pass took.
func (m *Metrics) RecordDecodeLatency(ctx context.Context, seconds float64) {
	m.TranscriptionDuration.Record(ctx, seconds)
}

// SetPipelineUp moves the pipeline up/down gauge by delta (+1 on start,
// -1 on stop).
func (m *Metrics) SetPipelineUp(ctx context.Context, delta int64) {
	m.PipelineUp.Add(ctx, delta)
}
