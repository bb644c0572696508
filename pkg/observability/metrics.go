package observability

import (
	"database/sql"
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

	// Access control metrics
	PermissionChecksTotal *prometheus.CounterVec
	PolicyReloadsTotal    *prometheus.CounterVec

	// Dashboard cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheBuildsTotal prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Business metrics
	DashboardsTotal prometheus.Gauge
	ResourcesTotal  *prometheus.GaugeVec
	APITokensActive prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geosight_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "geosight_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geosight_permission_checks_total",
				Help: "Total number of permission checks",
			},
			[]string{"resource_type", "check", "allowed"},
		),
		PolicyReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "geosight_policy_reloads_total",
				Help: "Total number of permission policy file reloads",
			},
			[]string{"status"},
		),

		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "geosight_dashboard_cache_hits_total",
				Help: "Total number of dashboard permission bundles served from cache",
			},
		),
		CacheBuildsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "geosight_dashboard_cache_builds_total",
				Help: "Total number of dashboard permission bundles built from scratch",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "geosight_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "geosight_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		DashboardsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "geosight_dashboards_total",
				Help: "Total number of dashboards",
			},
		),
		ResourcesTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "geosight_resources_total",
				Help: "Total number of resources by type",
			},
			[]string{"resource_type"},
		),
		APITokensActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "geosight_api_tokens_active",
				Help: "Number of active API tokens",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.PolicyReloadsTotal,
		m.CacheHitsTotal,
		m.CacheBuildsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DashboardsTotal,
		m.ResourcesTotal,
		m.APITokensActive,
	)

	return m
}

// ObservePermissionCheck records one named permission check. Wired into
// the resolver's observer hook at startup.
func (m *Metrics) ObservePermissionCheck(resourceType, check string, allowed bool) {
	m.PermissionChecksTotal.WithLabelValues(resourceType, check, strconv.FormatBool(allowed)).Inc()
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

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

// CollectDBStats copies connection pool stats into the gauges
func (m *Metrics) CollectDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}
