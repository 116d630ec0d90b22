package edge

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	cacheTotal        *prometheus.CounterVec
	originFetches     *prometheus.CounterVec
	originErrors      prometheus.Counter
	prewarmsEnqueued  *prometheus.CounterVec
	rateLimitRejected prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgate_edge_requests_total",
			Help: "Total HTTP requests handled by the edge.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelgate_edge_request_duration_seconds",
			Help:    "Edge request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgate_edge_cache_total",
			Help: "Variant cache lookups by result.",
		}, []string{"result"}),
		originFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgate_edge_origin_fetches_total",
			Help: "Successful origin fetches by upstream.",
		}, []string{"origin"}),
		originErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelgate_edge_origin_errors_total",
			Help: "Total origin fetches that exhausted every upstream.",
		}),
		prewarmsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgate_edge_prewarms_enqueued_total",
			Help: "Prewarm tasks enqueued by result.",
		}, []string{"result"}),
		rateLimitRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelgate_edge_rate_limit_rejections_total",
			Help: "Total cache misses rejected by rate limiting.",
		}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.cacheTotal,
		m.originFetches,
		m.originErrors,
		m.prewarmsEnqueued,
		m.rateLimitRejected,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/healthz"):
		return "/healthz"
	case strings.HasPrefix(path, "/metrics"):
		return "/metrics"
	default:
		return "/{image}"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}
