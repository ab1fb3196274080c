package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the registry sync pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	syncJobDuration *prometheus.HistogramVec
	syncJobTotal    *prometheus.CounterVec
	registryCalls   *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	deadLetters     prometheus.Gauge
}

// NewMetricsService registers the application's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	syncJobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_job_duration_seconds",
		Help:    "Duration of registry sync jobs in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "outcome"})

	syncJobTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_jobs_total",
		Help: "Total registry sync jobs processed",
	}, []string{"kind", "outcome"})

	registryCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registry_calls_total",
		Help: "Total calls made to the national registry",
	}, []string{"operation", "outcome"})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_queue_depth",
		Help: "Jobs waiting on the sync queue",
	})

	deadLetters := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_dead_letters",
		Help: "Jobs parked on the dead letter list",
	})

	registry.MustRegister(requestDuration, requestTotal, syncJobDuration, syncJobTotal, registryCalls, queueDepth, deadLetters)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		syncJobDuration: syncJobDuration,
		syncJobTotal:    syncJobTotal,
		registryCalls:   registryCalls,
		queueDepth:      queueDepth,
		deadLetters:     deadLetters,
	}
}

// Handler serves the /metrics scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveRequest records one HTTP request.
func (m *MetricsService) ObserveRequest(method, path, status string, duration time.Duration) {
	m.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveSyncJob records one completed sync job.
func (m *MetricsService) ObserveSyncJob(kind, outcome string, duration time.Duration) {
	m.syncJobDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
	m.syncJobTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveRegistryCall records one registry call outcome.
func (m *MetricsService) ObserveRegistryCall(operation, outcome string) {
	m.registryCalls.WithLabelValues(operation, outcome).Inc()
}

// SetQueueGauges updates the queue depth and dead letter gauges.
func (m *MetricsService) SetQueueGauges(depth, dead int64) {
	m.queueDepth.Set(float64(depth))
	m.deadLetters.Set(float64(dead))
}
