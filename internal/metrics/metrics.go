// Package metrics exposes import counters for Prometheus.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raulbatres90/challenge-estudiantes/internal/core"
)

const namespace = "student_import"

// Metrics implements core.Observer.
type Metrics struct {
	registry *prometheus.Registry

	importsTotal     *prometheus.CounterVec
	rowsTotal        *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	insertsTotal     *prometheus.CounterVec
	importDuration   *prometheus.HistogramVec
	requestsTotal    *prometheus.CounterVec
	requestDurations *prometheus.HistogramVec
}

var _ core.Observer = (*Metrics)(nil)

// New registers the import metrics, plus the Go and process collectors, on
// a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		importsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Total number of imports by outcome.",
		}, []string{"phase"}),
		rowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Total number of data rows examined, by validation result.",
		}, []string{"result"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Total number of validation errors by field.",
		}, []string{"field"}),
		insertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inserts_total",
			Help:      "Total number of insert attempts by result.",
		}, []string{"result"}),
		importDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Import duration distribution.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"phase"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status class.",
		}, []string{"route", "method", "status"}),
		requestDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// ObserveImport records a finished import.
func (m *Metrics) ObserveImport(res core.ImportResult) {
	phase := string(res.Phase)
	m.importsTotal.WithLabelValues(phase).Inc()
	m.importDuration.WithLabelValues(phase).Observe(res.Duration.Seconds())

	m.rowsTotal.WithLabelValues("accepted").Add(float64(res.ValidCount))
	if rejected := res.TotalRows - res.ValidCount; rejected > 0 {
		m.rowsTotal.WithLabelValues("rejected").Add(float64(rejected))
	}

	for _, e := range res.Errors {
		m.errorsTotal.WithLabelValues(e.Field).Inc()
	}

	m.insertsTotal.WithLabelValues("ok").Add(float64(res.Insert.Inserted))
	if failed := len(res.Insert.Failures); failed > 0 {
		m.insertsTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

// ObserveRequest records one HTTP request. status is reduced to its class
// (2xx, 4xx, ...) to keep cardinality low.
func (m *Metrics) ObserveRequest(route, method string, status int, seconds float64) {
	if route == "" {
		route = "unmatched"
	}
	m.requestsTotal.WithLabelValues(route, strings.ToUpper(method), statusClass(status)).Inc()
	m.requestDurations.WithLabelValues(route, strings.ToUpper(method)).Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
