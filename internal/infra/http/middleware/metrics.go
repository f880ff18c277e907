package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
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
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	assignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpool_assignments_total",
			Help: "Lead assignments by mode (single, batch) and outcome",
		},
		[]string{"mode", "outcome"},
	)

	followUpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadpool_followups_total",
			Help: "Follow-up records appended by kind",
		},
		[]string{"kind"},
	)

	batchRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadpool_batch_rollbacks_total",
			Help: "Batch assignments rolled back after an internal fault",
		},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		// label by route pattern, not raw path, to keep lead ids out of the series
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// DomainMetrics feeds the use cases' counters into Prometheus.
type DomainMetrics struct{}

func (DomainMetrics) RecordAssignment(mode, outcome string) {
	assignmentsTotal.WithLabelValues(mode, outcome).Inc()
}

func (DomainMetrics) RecordFollowUp(kind string) {
	followUpsTotal.WithLabelValues(kind).Inc()
}

func (DomainMetrics) RecordBatchRollback() {
	batchRollbacks.Inc()
}
