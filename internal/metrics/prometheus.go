// Package metrics provides Prometheus-based metrics collection for reconengine.
// Collectors are registered on a private registry so that tests and embedded
// engines never collide with the process-wide default registry.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all reconengine metrics
	namespace = "reconengine"

	// Subsystems
	subsystemScan     = "scan"
	subsystemProbe    = "probe"
	subsystemResolver = "resolver"
	subsystemAPI      = "api"
)

// PrometheusMetrics holds all Prometheus metric collectors.
// All methods are safe to call on a nil receiver, which turns them into no-ops.
type PrometheusMetrics struct {
	// Scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	activeScans  prometheus.Gauge
	batchesTotal prometheus.Counter

	// Probe metrics
	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec

	// Resolver metrics
	resolutionsTotal *prometheus.CounterVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	pm := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
	}

	pm.initScanMetrics()
	pm.initProbeMetrics()
	pm.initResolverMetrics()
	pm.initAPIMetrics()
	pm.registerMetrics()

	return pm
}

// initScanMetrics initializes scan-related metrics
func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scans performed by mode and status",
		},
		[]string{"mode", "status"},
	)

	pm.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of scan operations in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 20.0, 30.0},
		},
		[]string{"mode"},
	)

	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of currently running scans",
		},
	)

	pm.batchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "batches_total",
			Help:      "Total number of probe batches committed",
		},
	)
}

// initProbeMetrics initializes per-port probe metrics
func (pm *PrometheusMetrics) initProbeMetrics() {
	pm.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "total",
			Help:      "Total number of port probes by resulting status",
		},
		[]string{"status"},
	)

	pm.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Time spent on a single connect attempt",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		},
		[]string{"status"},
	)
}

// initResolverMetrics initializes target resolution metrics
func (pm *PrometheusMetrics) initResolverMetrics() {
	pm.resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemResolver,
			Name:      "lookups_total",
			Help:      "Total number of forward lookups by backend and status",
		},
		[]string{"backend", "status"},
	)
}

// initAPIMetrics initializes API-related metrics
func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"method", "route"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.scansTotal,
		pm.scanDuration,
		pm.activeScans,
		pm.batchesTotal,
		pm.probesTotal,
		pm.probeDuration,
		pm.resolutionsTotal,
		pm.httpRequests,
		pm.httpDuration,
	)

	// Standard Go and process collectors for runtime visibility
	pm.registry.MustRegister(collectors.NewGoCollector())
	pm.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// GetRegistry returns the Prometheus registry backing these collectors.
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Handler returns an HTTP handler exposing the registry in the text format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// Scan Metrics Methods

// ScanStarted marks a scan as running.
func (pm *PrometheusMetrics) ScanStarted() {
	if pm == nil {
		return
	}
	pm.activeScans.Inc()
}

// ScanFinished records the outcome of a scan and clears its running mark.
func (pm *PrometheusMetrics) ScanFinished(mode, status string, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.activeScans.Dec()
	pm.scansTotal.WithLabelValues(mode, status).Inc()
	pm.scanDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// IncrementBatches counts a committed probe batch.
func (pm *PrometheusMetrics) IncrementBatches() {
	if pm == nil {
		return
	}
	pm.batchesTotal.Inc()
}

// Probe Metrics Methods

// RecordProbe records one probe outcome.
func (pm *PrometheusMetrics) RecordProbe(status string, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.probesTotal.WithLabelValues(status).Inc()
	pm.probeDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Resolver Metrics Methods

// RecordResolution records a forward lookup outcome.
func (pm *PrometheusMetrics) RecordResolution(backend string, success bool) {
	if pm == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	pm.resolutionsTotal.WithLabelValues(backend, status).Inc()
}

// API Metrics Methods

// RecordHTTPRequest records one served HTTP request.
func (pm *PrometheusMetrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.httpRequests.WithLabelValues(method, route, status).Inc()
	pm.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Global instance for easy access
var (
	globalMetrics *PrometheusMetrics
	metricsOnce   sync.Once
)

// GetGlobalMetrics returns the global Prometheus metrics instance.
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
