package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Command pipeline metrics
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commands_total",
			Help: "Total number of commands executed",
		},
		[]string{"command", "outcome"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Command execution duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"command"},
	)

	eventsAppendedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_appended_total",
			Help: "Total number of events appended to the event store",
		},
		[]string{"aggregate_type", "event_type"},
	)

	concurrencyConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concurrency_conflicts_total",
			Help: "Total number of optimistic-concurrency conflicts surfaced by the event store",
		},
		[]string{"aggregate_type"},
	)

	// Projection engine metrics
	projectionLagSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "projection_lag_seconds",
			Help: "Age of the event a projection most recently applied",
		},
		[]string{"projection"},
	)

	projectionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projection_errors_total",
			Help: "Total number of events a projection failed to apply",
		},
		[]string{"projection"},
	)

	projectionStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "projection_status",
			Help: "Projection status (0=running, 1=error)",
		},
		[]string{"projection"},
	)

	auditEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Total number of audit entries created",
		},
	)

	authorizationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"resource_type", "action", "decision"},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	// Replace UUIDs with placeholder
	// Simple heuristic: segments that look like UUIDs
	// In production, use proper path templates
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Command pipeline metric helpers ---

// RecordCommand records one command execution (spec §4.3 step 9).
func RecordCommand(command, outcome string, duration time.Duration) {
	commandsTotal.WithLabelValues(command, outcome).Inc()
	commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordEventAppended records one event store append (spec §4.1).
func RecordEventAppended(aggregateType, eventType string) {
	eventsAppendedTotal.WithLabelValues(aggregateType, eventType).Inc()
}

// RecordConcurrencyConflict records an optimistic-concurrency conflict.
func RecordConcurrencyConflict(aggregateType string) {
	concurrencyConflictsTotal.WithLabelValues(aggregateType).Inc()
}

// RecordProjectionLag reports how far behind a projection's cursor is
// from the event it last had a chance to apply (spec §4.4 monitoring).
func RecordProjectionLag(projection string, lag time.Duration) {
	projectionLagSeconds.WithLabelValues(projection).Set(lag.Seconds())
}

// RecordProjectionError records one failed-event application.
func RecordProjectionError(projection string) {
	projectionErrorsTotal.WithLabelValues(projection).Inc()
}

// RecordProjectionStatus reports whether a projection is running (false)
// or has crossed MaxErrors into the error status (true).
func RecordProjectionStatus(projection string, errored bool) {
	v := 0.0
	if errored {
		v = 1.0
	}
	projectionStatus.WithLabelValues(projection).Set(v)
}

// RecordAuditEntry records an audit entry creation
func RecordAuditEntry() {
	auditEntriesTotal.Inc()
}

// RecordAuthorizationDecision records an authorization decision
func RecordAuthorizationDecision(resourceType, action string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	authorizationDecisions.WithLabelValues(resourceType, action, decision).Inc()
}

// RecordDBConnections records active database connections
func RecordDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
