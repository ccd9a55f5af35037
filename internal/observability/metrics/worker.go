package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics observes document-uploaded events handled by the worker.
type WorkerMetrics struct {
	registry *prometheus.Registry

	eventsTotal     *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	eventLag        prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "notebook",
			Subsystem:   "worker",
			Name:        "events_total",
			Help:        "Document-uploaded events handled, by status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "notebook",
			Subsystem:   "worker",
			Name:        "process_duration_seconds",
			Help:        "Document processing duration in seconds by status.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "notebook",
			Subsystem:   "worker",
			Name:        "process_in_flight",
			Help:        "Number of in-flight processing runs.",
			ConstLabels: constLabels,
		},
	)
	eventLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "notebook",
			Subsystem:   "worker",
			Name:        "event_lag_seconds",
			Help:        "Delay between upload and processing start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(eventsTotal, processDuration, processInFlight, eventLag)

	return &WorkerMetrics{
		registry:        registry,
		eventsTotal:     eventsTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		eventLag:        eventLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartProcessing(uploadedAt time.Time) {
	m.processInFlight.Inc()
	if !uploadedAt.IsZero() {
		if lag := time.Since(uploadedAt); lag >= 0 {
			m.eventLag.Observe(lag.Seconds())
		}
	}
}

func (m *WorkerMetrics) FinishProcessing(duration time.Duration, err error) {
	m.processInFlight.Dec()
	status := outcome(err)
	m.eventsTotal.WithLabelValues(status).Inc()
	m.processDuration.WithLabelValues(status).Observe(duration.Seconds())
}
