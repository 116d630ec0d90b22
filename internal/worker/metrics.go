package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	prewarmsTotal     *prometheus.CounterVec
	prewarmDuration   *prometheus.HistogramVec
	activePrewarms    prometheus.Gauge
	variantBytesTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		prewarmsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelgate_worker_prewarms_total",
			Help: "Total prewarm tasks by final outcome.",
		}, []string{"outcome"}),
		prewarmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelgate_worker_prewarm_duration_seconds",
			Help:    "Total processing duration for each prewarm task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		activePrewarms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelgate_worker_active_prewarms",
			Help: "Current number of prewarm tasks being generated.",
		}),
		variantBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelgate_worker_variant_bytes_total",
			Help: "Total bytes written to the variant bucket by prewarms.",
		}),
	}

	registry.MustRegister(
		m.prewarmsTotal,
		m.prewarmDuration,
		m.activePrewarms,
		m.variantBytesTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
