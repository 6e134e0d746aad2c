package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Backend metrics
	BackendOperationsTotal   *prometheus.CounterVec
	BackendOperationDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Resync metrics
	ResyncTotal    *prometheus.CounterVec
	ResyncDuration prometheus.Histogram

	// Command and resolution metrics
	CommandsTotal            *prometheus.CounterVec
	CallbackInvocationsTotal *prometheus.CounterVec
	OnlinePlayers            prometheus.Gauge

	// Cluster metrics
	ClusterMessagesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permissions_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "permissions_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		BackendOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permissions_backend_operations_total",
				Help: "Total number of backend operations",
			},
			[]string{"operation", "backend", "status"},
		),
		BackendOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "permissions_backend_operation_duration_seconds",
				Help:    "Backend operation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"operation", "backend"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permissions_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permissions_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		ResyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permissions_resync_total",
				Help: "Total number of database resyncs",
			},
			[]string{"status"},
		),
		ResyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "permissions_resync_duration_seconds",
				Help:    "Database resync duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permissions_commands_total",
				Help: "Total number of executed commands",
			},
			[]string{"command", "transport", "status"},
		),
		CallbackInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permissions_callback_invocations_total",
				Help: "Total number of dynamic group provider invocations",
			},
			[]string{"provider"},
		),
		OnlinePlayers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "permissions_online_players",
				Help: "Number of players currently online",
			},
		),
		ClusterMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "permissions_cluster_messages_total",
				Help: "Total number of cluster invalidation messages",
			},
			[]string{"direction"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BackendOperationsTotal,
		m.BackendOperationDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ResyncTotal,
		m.ResyncDuration,
		m.CommandsTotal,
		m.CallbackInvocationsTotal,
		m.OnlinePlayers,
		m.ClusterMessagesTotal,
	)

	return m
}

// ObserveBackend records one backend call. A nil receiver is a no-op.
func (m *Metrics) ObserveBackend(operation, backend string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.BackendOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.BackendOperationDuration.WithLabelValues(operation, backend).Observe(time.Since(start).Seconds())
}

// CacheHit records a cache lookup result. A nil receiver is a no-op.
func (m *Metrics) CacheHit(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// CallbackInvoked counts one dynamic group provider call. A nil receiver is a no-op.
func (m *Metrics) CallbackInvoked(provider string) {
	if m == nil {
		return
	}
	m.CallbackInvocationsTotal.WithLabelValues(provider).Inc()
}

// CommandExecuted counts one admin command. A nil receiver is a no-op.
func (m *Metrics) CommandExecuted(command, transport string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.CommandsTotal.WithLabelValues(command, transport, status).Inc()
}

// ObserveResync records one resync run. A nil receiver is a no-op.
func (m *Metrics) ObserveResync(start time.Time, status string) {
	if m == nil {
		return
	}
	m.ResyncTotal.WithLabelValues(status).Inc()
	if status != "skipped" {
		m.ResyncDuration.Observe(time.Since(start).Seconds())
	}
}

// ClusterMessage counts one message published ("out") or received ("in"). A nil receiver is a no-op.
func (m *Metrics) ClusterMessage(direction string) {
	if m == nil {
		return
	}
	m.ClusterMessagesTotal.WithLabelValues(direction).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// pathLabel maps a request to a low-cardinality label (a route template);
// when nil the raw URL path is used.
func HTTPMetricsMiddleware(metrics *Metrics, pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if pathLabel != nil {
				path = pathLabel(r)
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
