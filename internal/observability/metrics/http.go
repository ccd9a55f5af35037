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

	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

// HTTPServerMetrics holds the BFF registry: request metrics plus the notebook
// controller observations.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	uploadFilesTotal   *prometheus.CounterVec
	uploadBatchSeconds prometheus.Histogram
	callsTotal         *prometheus.CounterVec
	callDuration       *prometheus.HistogramVec
}

var _ ports.NotebookMetrics = (*HTTPServerMetrics)(nil)

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "notebook",
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "notebook",
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "notebook",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	uploadFilesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "notebook",
			Subsystem:   "upload",
			Name:        "files_total",
			Help:        "Uploaded files by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	uploadBatchSeconds := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "notebook",
			Subsystem:   "upload",
			Name:        "batch_duration_seconds",
			Help:        "Upload batch duration in seconds.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			ConstLabels: constLabels,
		},
	)
	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "notebook",
			Subsystem:   "backend",
			Name:        "calls_total",
			Help:        "Backend calls made by the notebook controllers.",
			ConstLabels: constLabels,
		},
		[]string{"call", "status"},
	)
	callDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "notebook",
			Subsystem:   "backend",
			Name:        "call_duration_seconds",
			Help:        "Backend call duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"call"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		uploadFilesTotal,
		uploadBatchSeconds,
		callsTotal,
		callDuration,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		uploadFilesTotal:   uploadFilesTotal,
		uploadBatchSeconds: uploadBatchSeconds,
		callsTotal:         callsTotal,
		callDuration:       callDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
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

		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/sources/"):
		return "/v1/sources/{id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) ObserveUploadBatch(succeeded, failed int, duration time.Duration) {
	if succeeded > 0 {
		m.uploadFilesTotal.WithLabelValues("success").Add(float64(succeeded))
	}
	if failed > 0 {
		m.uploadFilesTotal.WithLabelValues("error").Add(float64(failed))
	}
	m.uploadBatchSeconds.Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveChat(err error, duration time.Duration) {
	m.observeCall("process_message", err, duration)
}

func (m *HTTPServerMetrics) ObserveSummary(err error, duration time.Duration) {
	m.observeCall("summary", err, duration)
}

func (m *HTTPServerMetrics) ObserveProcessing(err error, duration time.Duration) {
	m.observeCall("process_document", err, duration)
}

func (m *HTTPServerMetrics) observeCall(call string, err error, duration time.Duration) {
	m.callsTotal.WithLabelValues(call, outcome(err)).Inc()
	m.callDuration.WithLabelValues(call).Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
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
