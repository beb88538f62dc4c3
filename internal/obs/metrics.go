package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	reconcileAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_reconcile_attempts_total",
		Help: "Profile fetch attempts issued by the reconciler.",
	})

	faultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_faults_total",
			Help: "Session-wide fault transitions by class.",
		},
		[]string{"class"},
	)

	directoryRefresh = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_directory_refresh_total",
			Help: "Directory cache refresh outcomes per collection.",
		},
		[]string{"collection", "outcome"},
	)

	roleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_role_transitions_total",
			Help: "Session role transitions after reconciliation.",
		},
		[]string{"role"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		reconcileAttempts, faultsTotal, directoryRefresh, roleTransitions,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ReconcileAttempt counts a single profile fetch attempt.
func ReconcileAttempt() { reconcileAttempts.Inc() }

// Fault counts a fault transition ("schema" or "connectivity").
func Fault(class string) { faultsTotal.WithLabelValues(class).Inc() }

// DirectoryRefresh records one collection's refresh outcome
// ("applied", "empty" or "error").
func DirectoryRefresh(collection, outcome string) {
	directoryRefresh.WithLabelValues(collection, outcome).Inc()
}

// RoleTransition counts the session settling on a role.
func RoleTransition(role string) { roleTransitions.WithLabelValues(role).Inc() }

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
