package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal           *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	BatchItemsTotal     *prometheus.CounterVec
	InFlightRuns        prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the metrics on a private registry so several instances can
// coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docuflux_pipeline_runs_total",
			Help: "Pipeline runs by outcome and failing stage.",
		}, []string{"outcome", "stage", "kind"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docuflux_stage_duration_seconds",
			Help:    "Duration of each pipeline stage.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		BatchItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docuflux_batch_items_total",
			Help: "Batch items by outcome.",
		}, []string{"outcome"}),
		InFlightRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docuflux_runs_in_flight",
			Help: "Pipeline runs currently executing.",
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncRun counts a finished run. stage and kind are empty on success.
func (m *Metrics) IncRun(outcome, stage, kind string) {
	m.RunsTotal.WithLabelValues(outcome, stage, kind).Inc()
}

func (m *Metrics) IncBatchItem(outcome string) {
	m.BatchItemsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
