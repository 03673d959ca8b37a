package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	datasetLoads     *prometheus.CounterVec
	datasetLoadTime  prometheus.Histogram
	datasetRows      *prometheus.GaugeVec
	forecastOutcomes *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		datasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataset_loads_total",
			Help: "Dataset loads by result.",
		}, []string{"result"}),
		datasetLoadTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataset_load_duration_seconds",
			Help:    "Time spent loading all five source tables.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		datasetRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dataset_rows",
			Help: "Rows held in memory per table.",
		}, []string{"table"}),
		forecastOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecasts_total",
			Help: "Forecast requests by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.datasetLoads,
		m.datasetLoadTime,
		m.datasetRows,
		m.forecastOutcomes,
		collectors.NewGoCollector(),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveLoad(err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.datasetLoads.WithLabelValues(result).Inc()
	m.datasetLoadTime.Observe(d.Seconds())
}

func (m *Metrics) SetRows(table string, n int) {
	if m == nil {
		return
	}
	m.datasetRows.WithLabelValues(table).Set(float64(n))
}

// ObserveForecast counts forecasts as "ok", "insufficient_data" or "error".
func (m *Metrics) ObserveForecast(outcome string) {
	if m == nil {
		return
	}
	m.forecastOutcomes.WithLabelValues(outcome).Inc()
}
