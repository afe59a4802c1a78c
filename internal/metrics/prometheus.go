package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Translation outcomes used as the "outcome" label.
const (
	OutcomeSuccess  = "success"
	OutcomeNetwork  = "network_error"
	OutcomeServer   = "server_error"
	OutcomeDecoding = "decoding_error"
	OutcomeDiscard  = "discarded"
)

// Metrics contains the client-side Prometheus metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Capture metrics
	CapturesStarted prometheus.Counter
	CaptureFailures prometheus.Counter
	CaptureBytes    prometheus.Histogram

	// Translation metrics
	TranslationRequests *prometheus.CounterVec
	TranslationDuration prometheus.Histogram
	TranslatedBytes     prometheus.Histogram

	// Artifact metrics
	LiveHandles prometheus.Gauge
	Downloads   prometheus.Counter
}

// New creates all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CapturesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "speaktranslate_captures_started_total",
			Help: "Total number of recording sessions started",
		}),
		CaptureFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "speaktranslate_capture_failures_total",
			Help: "Total number of recordings that could not be opened or finalized",
		}),
		CaptureBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "speaktranslate_capture_bytes",
			Help:    "Size of assembled recordings in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),

		TranslationRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "speaktranslate_translation_requests_total",
			Help: "Total number of translation requests by outcome",
		}, []string{"outcome"}),
		TranslationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "speaktranslate_translation_duration_seconds",
			Help:    "Round-trip time of translation requests",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		TranslatedBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "speaktranslate_translated_audio_bytes",
			Help:    "Size of decoded translated audio in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),

		LiveHandles: factory.NewGauge(prometheus.GaugeOpts{
			Name: "speaktranslate_live_artifact_handles",
			Help: "Number of artifact resource handles currently held",
		}),
		Downloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "speaktranslate_downloads_total",
			Help: "Total number of translated audio files saved",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) CaptureStarted() {
	if m == nil {
		return
	}
	m.CapturesStarted.Inc()
}

func (m *Metrics) CaptureFailed() {
	if m == nil {
		return
	}
	m.CaptureFailures.Inc()
}

func (m *Metrics) CaptureAssembled(size int) {
	if m == nil {
		return
	}
	m.CaptureBytes.Observe(float64(size))
}

// ObserveTranslation records one finished request.
func (m *Metrics) ObserveTranslation(outcome string, elapsed time.Duration, audioBytes int) {
	if m == nil {
		return
	}
	m.TranslationRequests.WithLabelValues(outcome).Inc()
	m.TranslationDuration.Observe(elapsed.Seconds())
	if outcome == OutcomeSuccess {
		m.TranslatedBytes.Observe(float64(audioBytes))
	}
}

// TranslationDiscarded counts a response that arrived after the session was closed.
func (m *Metrics) TranslationDiscarded() {
	if m == nil {
		return
	}
	m.TranslationRequests.WithLabelValues(OutcomeDiscard).Inc()
}

func (m *Metrics) SetLiveHandles(n int) {
	if m == nil {
		return
	}
	m.LiveHandles.Set(float64(n))
}

func (m *Metrics) Downloaded() {
	if m == nil {
		return
	}
	m.Downloads.Inc()
}
