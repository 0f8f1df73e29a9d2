package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestling_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nestling_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	storeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nestling_store_latency_seconds",
		Help:    "Histogram of event store operation latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route"})

	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestling_store_errors_total",
		Help: "Event store operations that returned an error.",
	}, []string{"operation"})

	monthCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestling_month_cache_lookups_total",
		Help: "Month cache lookups by result (hit or miss).",
	}, []string{"result"})

	preloadTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestling_preload_tasks_total",
		Help: "Month preload tasks by outcome.",
	}, []string{"outcome"})

	undoOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestling_undo_total",
		Help: "Undo attempts by outcome.",
	}, []string{"outcome"})
)

// Middleware records request metrics. The route label is read after the
// handler ran, once chi has resolved the full pattern.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			status := strconv.Itoa(ww.Status())
			httpRequestsTotal.WithLabelValues(r.Method, route).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStore records store latency for an operation, associating it with
// the request route when available.
func ObserveStore(ctx context.Context, operation string, start time.Time, err error) {
	storeLatency.WithLabelValues(operation, routeFromContext(ctx)).Observe(time.Since(start).Seconds())
	if err != nil {
		storeErrors.WithLabelValues(operation).Inc()
	}
}

func MonthCacheLookup(hit bool) {
	if hit {
		monthCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	monthCacheLookups.WithLabelValues("miss").Inc()
}

// PreloadOutcome counts a finished preload task: stored, skipped, discarded
// or failed.
func PreloadOutcome(outcome string) {
	preloadTasks.WithLabelValues(outcome).Inc()
}

func UndoOutcome(outcome string) {
	undoOutcomes.WithLabelValues(outcome).Inc()
}

func routeFromContext(ctx context.Context) string {
	if rctx := chi.RouteContext(ctx); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
