package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the live transcription service
type Metrics struct {
	// Capture metrics
	FramesCaptured  prometheus.Counter
	QueueSize       prometheus.Gauge
	BufferedSamples prometheus.Gauge

	// Pipeline metrics
	CyclesProcessed prometheus.Counter
	SilentCycles    prometheus.Counter

	// Segmentation metrics
	SegmentsExtracted prometheus.Counter
	SegmentDuration   prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Deduplication metrics
	TranscriptsEmitted    prometheus.Counter
	TranscriptsSuppressed prometheus.Counter
	TranscriptsDropped    prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics and registers them with the
// given registerer. Tests pass a fresh registry to avoid duplicate
// registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Capture metrics
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "lts_frames_captured_total",
			Help: "Total number of audio frames captured from the input device",
		}),
		QueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lts_frame_queue_size",
			Help: "Current number of frames waiting in the capture queue",
		}),
		BufferedSamples: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lts_buffered_samples",
			Help: "Current number of samples in the accumulation buffer",
		}),

		// Pipeline metrics
		CyclesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lts_pipeline_cycles_total",
			Help: "Total number of pipeline processing cycles",
		}),
		SilentCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "lts_pipeline_silent_cycles_total",
			Help: "Total number of cycles whose buffered audio was below the silence threshold",
		}),

		// Segmentation metrics
		SegmentsExtracted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lts_segments_extracted_total",
			Help: "Total number of speech segments extracted for transcription",
		}),
		SegmentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lts_segment_duration_seconds",
			Help:    "Duration of extracted speech segments",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~2 minutes
		}),

		// Transcription metrics
		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "lts_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "lts_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "lts_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lts_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Deduplication metrics
		TranscriptsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lts_transcripts_emitted_total",
			Help: "Total number of transcripts emitted to consumers",
		}),
		TranscriptsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lts_transcripts_suppressed_total",
			Help: "Total number of transcripts suppressed as duplicates or too short",
		}),
		TranscriptsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "lts_transcripts_dropped_total",
			Help: "Total number of accepted transcripts dropped because the output channel was full",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lts_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lts_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lts_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordFrameCaptured increments the frames captured counter
func (m *Metrics) RecordFrameCaptured() {
	m.FramesCaptured.Inc()
}

// SetQueueSize sets the current frame queue size
func (m *Metrics) SetQueueSize(size int) {
	m.QueueSize.Set(float64(size))
}

// SetBufferedSamples sets the current accumulation buffer size
func (m *Metrics) SetBufferedSamples(count int) {
	m.BufferedSamples.Set(float64(count))
}

// RecordCycle increments cycles processed and optionally silent cycles
func (m *Metrics) RecordCycle(silent bool) {
	m.CyclesProcessed.Inc()
	if silent {
		m.SilentCycles.Inc()
	}
}

// RecordSegment increments segments extracted and records its duration
func (m *Metrics) RecordSegment(durationSeconds float64) {
	m.SegmentsExtracted.Inc()
	m.SegmentDuration.Observe(durationSeconds)
}

// RecordTranscription records the outcome and duration of a transcription request
func (m *Metrics) RecordTranscription(success bool, durationSeconds float64) {
	m.TranscriptionRequests.Inc()
	if success {
		m.TranscriptionSuccesses.Inc()
	} else {
		m.TranscriptionFailures.Inc()
	}
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptEmitted increments the transcripts emitted counter
func (m *Metrics) RecordTranscriptEmitted() {
	m.TranscriptsEmitted.Inc()
}

// RecordTranscriptSuppressed increments the transcripts suppressed counter
func (m *Metrics) RecordTranscriptSuppressed() {
	m.TranscriptsSuppressed.Inc()
}

// RecordTranscriptDropped increments the dropped transcripts counter
func (m *Metrics) RecordTranscriptDropped() {
	m.TranscriptsDropped.Inc()
}

// RecordHTTPRequest records an HTTP request with its duration
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error by type
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
