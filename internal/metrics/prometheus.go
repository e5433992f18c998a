package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription node.
type Metrics struct {
	// Work item metrics
	ItemsProcessed prometheus.Counter
	ItemsFailed    *prometheus.CounterVec
	ItemDuration   prometheus.Histogram

	// Audio pipeline metrics
	TranscodeInvocations prometheus.Counter
	TranscodeDuration    prometheus.Histogram
	AudioDuration        prometheus.Histogram
	NormalizeDuration    prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ItemsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_items_processed_total",
			Help: "Total number of work items processed successfully",
		}),
		ItemsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_items_failed_total",
			Help: "Total number of work items that failed, by pipeline stage",
		}, []string{"stage"}),
		ItemDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_item_duration_seconds",
			Help:    "End-to-end processing time per work item",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.5 minutes
		}),

		TranscodeInvocations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_transcode_invocations_total",
			Help: "Total number of transcoding engine invocations",
		}),
		TranscodeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_transcode_duration_seconds",
			Help:    "Duration of transcoding engine invocations",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		AudioDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_audio_duration_seconds",
			Help:    "Duration of normalized audio per work item",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),
		NormalizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_normalize_duration_seconds",
			Help:    "Time spent decoding and normalizing audio",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),

		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_transcription_requests_total",
			Help: "Total number of transcription invocations",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_transcription_successes_total",
			Help: "Total number of successful transcription invocations",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stt_transcription_failures_total",
			Help: "Total number of failed transcription invocations",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_transcription_duration_seconds",
			Help:    "Duration of transcription invocations",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.5 minutes
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stt_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordItemProcessed records a successfully processed work item.
func (m *Metrics) RecordItemProcessed(durationSeconds float64) {
	m.ItemsProcessed.Inc()
	m.ItemDuration.Observe(durationSeconds)
}

// RecordItemFailed records a failed work item attributed to a pipeline stage.
func (m *Metrics) RecordItemFailed(stage string) {
	m.ItemsFailed.WithLabelValues(stage).Inc()
}

// RecordTranscode records a transcoding engine invocation.
func (m *Metrics) RecordTranscode(durationSeconds float64) {
	m.TranscodeInvocations.Inc()
	m.TranscodeDuration.Observe(durationSeconds)
}

// RecordNormalize records audio decoding and normalization.
func (m *Metrics) RecordNormalize(durationSeconds, audioSeconds float64) {
	m.NormalizeDuration.Observe(durationSeconds)
	m.AudioDuration.Observe(audioSeconds)
}

// RecordTranscriptionRequest increments the transcription requests counter.
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription.
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription.
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
