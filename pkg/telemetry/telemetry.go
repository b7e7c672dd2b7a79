// Package telemetry instruments the HTTP surface: request counts and
// latencies by route, plus lightweight slow-request logging. Heavy tracing
// belongs to the fronting gateway; this stays cheap enough to always be on.
package telemetry

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"msgsync/pkg/logger"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgsync_http_requests_total",
		Help: "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "msgsync_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

var slowThreshold = 200 * time.Millisecond

// SetSlowThreshold adjusts the duration above which requests get a warn log.
func SetSlowThreshold(d time.Duration) {
	if d > 0 {
		slowThreshold = d
	}
}

// Middleware records metrics and logs slow requests. Mount it on a mux router
// so the route template (not the raw path) becomes the metric label.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		dur := time.Since(start)

		route := routeName(r)
		requestsTotal.WithLabelValues(route, r.Method, http.StatusText(srw.status)).Inc()
		requestDuration.WithLabelValues(route).Observe(dur.Seconds())

		if dur > slowThreshold {
			logger.Log.Warn("slow_request",
				zap.String("route", route), zap.String("method", r.Method),
				zap.Int("status", srw.status), zap.Duration("took", dur))
		}
	})
}

// routeName returns the mux route template, falling back to the raw path for
// unrouted requests. Templates keep label cardinality bounded.
func routeName(r *http.Request) string {
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
