package origin

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixelgate/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	variantsTotal     *prometheus.CounterVec
	variantBytesTotal prometheus.Counter
	stageDuration     *prometheus.HistogramVec
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
			Name: "pixelgate_origin_requests_total",
			Help: "Total HTTP requests handled by the transform origin.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelgate_origin_request_duration_seconds",
			Help:    "Origin request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		variantsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgate_origin_variants_total",
			Help: "Total variants generated by the origin, by output format.",
		}, []string{"format"}),
		variantBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelgate_origin_variant_bytes_total",
			Help: "Total bytes written to the variant bucket by the origin.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelgate_origin_stage_duration_seconds",
			Help:    "Render stage latency for generated variants.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.variantsTotal,
		m.variantBytesTotal,
		m.stageDuration,
	)
	return m
}

func (m *metrics) observeStages(variant pipeline.Variant) {
	m.stageDuration.WithLabelValues("fetch").Observe(float64(variant.FetchMS) / 1000)
	m.stageDuration.WithLabelValues("transform").Observe(float64(variant.TransformMS) / 1000)
	m.stageDuration.WithLabelValues("store").Observe(float64(variant.StoreMS) / 1000)
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
	case path == "/renditions":
		return "/renditions"
	default:
		return "/{source}/{operations}"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
