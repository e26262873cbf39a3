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

	// Business metrics
	recommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total number of ward recommendations served",
		},
		[]string{"diagnosis", "fallback"},
	)

	feedbackRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_records_total",
			Help: "Total number of placement feedback records processed",
		},
		[]string{"outcome"},
	)

	snapshotSubstitutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_substitutions_total",
			Help: "Total number of observation-day substitutions during reconciliation",
		},
		[]string{"slot", "source"},
	)

	artifactSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_saves_total",
			Help: "Total number of engine artifact save attempts",
		},
		[]string{"backend", "status"},
	)

	bedFeedPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bed_feed_polls_total",
			Help: "Total number of HIS bed feed poll cycles",
		},
		[]string{"status"},
	)

	bedFeedPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bed_feed_poll_duration_seconds",
			Help:    "HIS bed feed poll duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	retrainCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrain_cycles_total",
			Help: "Total number of retrain scheduler cycles",
		},
		[]string{"status"},
	)

	forecastRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_requests_total",
			Help: "Total number of forecast requests served",
		},
		[]string{"kind", "predictor"},
	)

	auditEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Total number of audit entries created",
		},
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
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordRecommendation records a served ward recommendation
func RecordRecommendation(diagnosis string, fallback bool) {
	recommendationsTotal.WithLabelValues(diagnosis, strconv.FormatBool(fallback)).Inc()
}

// RecordFeedback records a processed feedback record by outcome
func RecordFeedback(outcome string) {
	feedbackRecordsTotal.WithLabelValues(outcome).Inc()
}

// RecordSnapshotSubstitution records an observation-day substitution
func RecordSnapshotSubstitution(slot, source string) {
	snapshotSubstitutionsTotal.WithLabelValues(slot, source).Inc()
}

// RecordArtifactSave records an engine artifact save attempt
func RecordArtifactSave(backend, status string) {
	artifactSavesTotal.WithLabelValues(backend, status).Inc()
}

// RecordBedFeedPoll records a HIS bed feed poll cycle
func RecordBedFeedPoll(status string, duration time.Duration) {
	bedFeedPollsTotal.WithLabelValues(status).Inc()
	bedFeedPollDuration.Observe(duration.Seconds())
}

// RecordRetrainCycle records a retrain scheduler cycle
func RecordRetrainCycle(status string) {
	retrainCyclesTotal.WithLabelValues(status).Inc()
}

// RecordForecast records a served forecast by kind and predictor
func RecordForecast(kind, predictor string) {
	forecastRequestsTotal.WithLabelValues(kind, predictor).Inc()
}

// RecordAuditEntry records an audit entry creation
func RecordAuditEntry() {
	auditEntriesTotal.Inc()
}

// RecordDBConnections records active database connections
func RecordDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
