// Package observe provides application-wide observability primitives for
// Polyglossa: OpenTelemetry metrics, distributed tracing, and the Prometheus
// exporter bridge that exposes them on /metrics.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Polyglossa metrics.
const meterName = "github.com/MrWong99/polyglossa"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text latency from utterance close to final
	// transcript.
	STTDuration metric.Float64Histogram

	// TranslateDuration tracks translation latency per language.
	TranslateDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency per language.
	TTSDuration metric.Float64Histogram

	// FirstFrameDuration tracks end-to-end latency from utterance close to
	// the first published audio frame per language.
	FirstFrameDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts detected utterances. Use with attribute:
	//   attribute.String("speaker", ...)
	Utterances metric.Int64Counter

	// BranchErrors counts failed (utterance, language) branches. Use with
	// attributes:
	//   attribute.String("language", ...), attribute.String("stage", ...)
	BranchErrors metric.Int64Counter

	// PublishedFrames counts published audio frames by language.
	PublishedFrames metric.Int64Counter

	// PublishedSubtitles counts published subtitles by language.
	PublishedSubtitles metric.Int64Counter

	// PipelineRestarts counts pipeline restart attempts by speaker.
	PipelineRestarts metric.Int64Counter

	// --- Gauges ---

	// ActivePipelines tracks the number of live speaker pipelines.
	ActivePipelines metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
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
	if met.STTDuration, err = m.Float64Histogram("polyglossa.stt.duration",
		metric.WithDescription("Latency from utterance close to final transcript."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslateDuration, err = m.Float64Histogram("polyglossa.translate.duration",
		metric.WithDescription("Latency of translation per language."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("polyglossa.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis per language."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FirstFrameDuration, err = m.Float64Histogram("polyglossa.first_frame.duration",
		metric.WithDescription("Latency from utterance close to first published audio frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("polyglossa.utterances",
		metric.WithDescription("Total detected utterances by speaker."),
	); err != nil {
		return nil, err
	}
	if met.BranchErrors, err = m.Int64Counter("polyglossa.branch.errors",
		metric.WithDescription("Total failed utterance branches by language and stage."),
	); err != nil {
		return nil, err
	}
	if met.PublishedFrames, err = m.Int64Counter("polyglossa.published.frames",
		metric.WithDescription("Total published audio frames by language."),
	); err != nil {
		return nil, err
	}
	if met.PublishedSubtitles, err = m.Int64Counter("polyglossa.published.subtitles",
		metric.WithDescription("Total published subtitles by language."),
	); err != nil {
		return nil, err
	}
	if met.PipelineRestarts, err = m.Int64Counter("polyglossa.pipeline.restarts",
		metric.WithDescription("Total pipeline restart attempts by speaker."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActivePipelines, err = m.Int64UpDownCounter("polyglossa.active_pipelines",
		metric.WithDescription("Number of live speaker pipelines."),
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance records an utterance counter increment for a speaker.
func (m *Metrics) RecordUtterance(ctx context.Context, speaker string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("speaker", speaker)),
	)
}

// RecordBranchError records a failed branch with the standard attribute set.
func (m *Metrics) RecordBranchError(ctx context.Context, language, stage string) {
	m.BranchErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("language", language),
			attribute.String("stage", stage),
		),
	)
}

// RecordPublishedFrame records a published audio frame for a language.
func (m *Metrics) RecordPublishedFrame(ctx context.Context, language string) {
	m.PublishedFrames.Add(ctx, 1,
		metric.WithAttributes(attribute.String("language", language)),
	)
}

// RecordPublishedSubtitle records a published subtitle for a language.
func (m *Metrics) RecordPublishedSubtitle(ctx context.Context, language string) {
	m.PublishedSubtitles.Add(ctx, 1,
		metric.WithAttributes(attribute.String("language", language)),
	)
}

// RecordPipelineRestart records a restart attempt for a speaker pipeline.
func (m *Metrics) RecordPipelineRestart(ctx context.Context, speaker string) {
	m.PipelineRestarts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("speaker", speaker)),
	)
}
