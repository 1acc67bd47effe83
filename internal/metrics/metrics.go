package metrics

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const divisor = 100

// Metrics defines all Prometheus metrics for the dispatcher.
type Metrics struct {
	registry *prometheus.Registry

	// RED for HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Engine runs
	Runs          *prometheus.CounterVec // by trigger
	RunDuration   *prometheus.HistogramVec
	Deliveries    *prometheus.CounterVec // by outcome: sent, failed, skipped
	DueSchedules  prometheus.Gauge
	BatchSize     prometheus.Gauge
	RemainingLoad prometheus.Gauge

	// Bulk provider
	Chunks        *prometheus.CounterVec // by provider, result
	ChunkDuration *prometheus.HistogramVec

	// Content pool cache
	CacheOps      *prometheus.CounterVec // by operation, result
	CacheDuration *prometheus.HistogramVec

	ServiceUptime prometheus.Gauge

	BusinessErrors  *prometheus.CounterVec
	TechnicalErrors *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics under the given namespace on a
// private registry.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	errorLabels := []string{"error_type", "severity"}
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests total",
			},
			[]string{"method", "endpoint", "status_class"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Engine invocations",
			},
			[]string{"trigger"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of engine invocations",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"trigger"},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Schedules processed by terminal outcome",
			},
			[]string{"outcome"},
		),
		DueSchedules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "due_schedules",
				Help:      "Due schedules found by the last run",
			},
		),
		BatchSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "batch_size",
				Help:      "Schedules selected by the last run",
			},
		),
		RemainingLoad: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "remaining_schedules",
				Help:      "Due schedules left for later ticks by the last run",
			},
		),

		Chunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bulk_chunks_total",
				Help:      "Bulk provider calls",
			},
			[]string{"result"},
		),
		ChunkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bulk_chunk_duration_seconds",
				Help:      "Duration of bulk provider calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),

		CacheOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_operations_total",
				Help:      "Cache operations by result",
			},
			[]string{"operation", "result"},
		),
		CacheDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_operation_duration_seconds",
				Help:      "Duration of cache operations",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"operation"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "service_start_time_seconds",
				Help:      "Service start time",
			},
		),

		BusinessErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "business_errors_total",
				Help:      "Total business errors",
			},
			errorLabels,
		),
		TechnicalErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "technical_errors_total",
				Help:      "Total technical errors",
			},
			errorLabels,
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.Runs,
		m.RunDuration,
		m.Deliveries,
		m.DueSchedules,
		m.BatchSize,
		m.RemainingLoad,
		m.Chunks,
		m.ChunkDuration,
		m.CacheOps,
		m.CacheDuration,
		m.ServiceUptime,
		m.BusinessErrors,
		m.TechnicalErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.ServiceUptime.SetToCurrentTime()
	return m
}

// RegisterDB adds database/sql pool statistics to the registry.
func (m *Metrics) RegisterDB(db *sql.DB, dbName string) {
	m.registry.MustRegister(collectors.NewDBStatsCollector(db, dbName))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMiddleware instruments Gin HTTP handlers for RED metrics.
func (m *Metrics) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		dur := time.Since(start).Seconds()
		statusClass := fmt.Sprintf("%dxx", c.Writer.Status()/divisor)

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, c.FullPath(), statusClass).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, c.FullPath()).Observe(dur)
	}
}

// ObserveChunk records one bulk provider call ("ok", "rejected" or "error").
func (m *Metrics) ObserveChunk(result string, d time.Duration) {
	m.Chunks.WithLabelValues(result).Inc()
	m.ChunkDuration.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveCache records one cache operation.
func (m *Metrics) ObserveCache(operation, result string, d time.Duration) {
	m.CacheOps.WithLabelValues(operation, result).Inc()
	m.CacheDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Technical counts an infrastructure failure.
func (m *Metrics) Technical(errorType string) {
	m.TechnicalErrors.WithLabelValues(errorType, "critical").Inc()
}

// Business counts a domain-level refusal.
func (m *Metrics) Business(errorType string) {
	m.BusinessErrors.WithLabelValues(errorType, "warning").Inc()
}
