package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	askTotal          *prometheus.CounterVec
	askDuration       *prometheus.HistogramVec
	refusalsTotal     *prometheus.CounterVec
	retrievedChunks   *prometheus.HistogramVec
	channelsUsed      *prometheus.HistogramVec
	corroboratedHits  *prometheus.HistogramVec
	translationsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "factstack",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "factstack",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "factstack",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	askTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "factstack",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total completed ask requests by outcome.",
		},
		[]string{"service", "outcome"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "factstack",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "Ask pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	refusalsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "factstack",
			Subsystem: "ask",
			Name:      "refusals_total",
			Help:      "Total refusals by pipeline stage.",
		},
		[]string{"service", "stage"},
	)
	retrievedChunks := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "factstack",
			Subsystem: "retrieval",
			Name:      "fused_candidates",
			Help:      "Distribution of fused evidence candidates per ask request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	channelsUsed := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "factstack",
			Subsystem: "retrieval",
			Name:      "channels_used",
			Help:      "Distribution of retrieval channels executed per ask request.",
			Buckets:   []float64{1, 2},
		},
		[]string{"service"},
	)
	corroboratedHits := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "factstack",
			Subsystem: "retrieval",
			Name:      "corroborated_hits",
			Help:      "Distribution of evidence items found by more than one channel.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		},
		[]string{"service"},
	)
	translationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "factstack",
			Subsystem: "retrieval",
			Name:      "translations_total",
			Help:      "Total query translations by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		askTotal,
		askDuration,
		refusalsTotal,
		retrievedChunks,
		channelsUsed,
		corroboratedHits,
		translationsTotal,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		askTotal:          askTotal,
		askDuration:       askDuration,
		refusalsTotal:     refusalsTotal,
		retrievedChunks:   retrievedChunks,
		channelsUsed:      channelsUsed,
		corroboratedHits:  corroboratedHits,
		translationsTotal: translationsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordAsk captures one completed ask run: outcome is "answered",
// "refused_pre" or "refused_model".
func (m *HTTPServerMetrics) RecordAsk(service, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.askTotal.WithLabelValues(service, outcome).Inc()
	m.askDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordRefusal(service, stage string) {
	if stage == "" {
		stage = "unknown"
	}
	m.refusalsTotal.WithLabelValues(service, stage).Inc()
}

func (m *HTTPServerMetrics) RecordRetrieval(service string, fusedCandidates, channelsUsed, corroboratedHits int) {
	m.retrievedChunks.WithLabelValues(service).Observe(float64(fusedCandidates))
	m.channelsUsed.WithLabelValues(service).Observe(float64(channelsUsed))
	m.corroboratedHits.WithLabelValues(service).Observe(float64(corroboratedHits))
}

// RecordTranslation captures one query translation: outcome is "model" or
// "dictionary_fallback".
func (m *HTTPServerMetrics) RecordTranslation(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.translationsTotal.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
