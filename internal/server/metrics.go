package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seedshare_http_requests_total",
			Help: "HTTP requests served, by route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seedshare_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seedshare_uploads_total",
			Help: "Upload attempts by kind and result.",
		},
		[]string{"kind", "result"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seedshare_upload_bytes_total",
			Help: "Bytes written to the blob directory by successful uploads.",
		},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seedshare_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter.",
		},
	)

	recordCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seedshare_record_cache_requests_total",
			Help: "Record cache lookups by result (hit, miss).",
		},
		[]string{"result"},
	)

	expiredRecordsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seedshare_expired_records_deleted_total",
			Help: "Expired records removed by the expiry sweeper.",
		},
	)

	expirySweepFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seedshare_expiry_sweep_failures_total",
			Help: "Expired records the sweeper failed to remove.",
		},
	)
)

func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routePattern returns the matched chi pattern so seed codes do not become
// label values.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
