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

	// Identity resolution metrics
	IdentityResolutionsTotal *prometheus.CounterVec
	IdentityCacheHitsTotal   prometheus.Counter
	IdentityCacheMissesTotal prometheus.Counter
	IdentityCoalescedTotal   prometheus.Counter
	GuestFallbacksTotal      prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Media metrics
	MediaUploadsTotal   *prometheus.CounterVec
	MediaUploadBytes    prometheus.Counter

	// Business metrics
	ProjectsTotal      prometheus.Gauge
	ActiveClientsTotal prometheus.Gauge
	PendingInvitations prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atelier_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "atelier_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		IdentityResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atelier_identity_resolutions_total",
				Help: "Total number of identity resolutions by resolved role",
			},
			[]string{"role"},
		),
		IdentityCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "atelier_identity_cache_hits_total",
				Help: "Total number of identity cache hits",
			},
		),
		IdentityCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "atelier_identity_cache_misses_total",
				Help: "Total number of identity cache misses",
			},
		),
		IdentityCoalescedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "atelier_identity_coalesced_total",
				Help: "Total number of identity resolutions coalesced into an in-flight lookup",
			},
		),
		GuestFallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "atelier_identity_guest_fallbacks_total",
				Help: "Total number of resolutions that fell back to the guest role",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atelier_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atelier_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		MediaUploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "atelier_media_uploads_total",
				Help: "Total number of media asset uploads",
			},
			[]string{"status"},
		),
		MediaUploadBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "atelier_media_upload_bytes_total",
				Help: "Total bytes uploaded to media storage",
			},
		),
		ProjectsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atelier_projects_total",
				Help: "Current number of projects",
			},
		),
		ActiveClientsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atelier_active_clients_total",
				Help: "Current number of active client organizations",
			},
		),
		PendingInvitations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "atelier_pending_invitations",
				Help: "Current number of pending invitations",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.IdentityResolutionsTotal,
		m.IdentityCacheHitsTotal,
		m.IdentityCacheMissesTotal,
		m.IdentityCoalescedTotal,
		m.GuestFallbacksTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.MediaUploadsTotal,
		m.MediaUploadBytes,
		m.ProjectsTotal,
		m.ActiveClientsTotal,
		m.PendingInvitations,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status for instrumentation
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// InstrumentHandler wraps an HTTP handler with request count and duration
// metrics. The path label should be the route template, not the raw URL,
// to keep cardinality bounded.
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
