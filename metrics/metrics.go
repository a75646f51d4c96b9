// Package metrics collects Prometheus metrics for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's collectors, bound to a private registry
// so multiple instances in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ModuleErrors    *prometheus.CounterVec
	ModuleDuration  *prometheus.HistogramVec
	ModulesLoaded   prometheus.Gauge
}

// New creates a metrics collector with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wagi_requests_total",
				Help: "Total number of gateway requests",
			},
			[]string{"route", "code"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wagi_request_duration_seconds",
				Help:    "Gateway request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"route"},
		),
		ModuleErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wagi_module_errors_total",
				Help: "Total number of module failures by kind",
			},
			[]string{"module", "kind"},
		),
		ModuleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wagi_module_execution_seconds",
				Help:    "Module execution time in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"module"},
		),
		ModulesLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wagi_modules_loaded",
				Help: "Number of modules loaded at startup",
			},
		),
	}
}

// RecordRequest records one gateway round trip.
func (m *Metrics) RecordRequest(route string, code int, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordExecution records one module run.
func (m *Metrics) RecordExecution(module string, duration time.Duration) {
	m.ModuleDuration.WithLabelValues(module).Observe(duration.Seconds())
}

// RecordError counts a module failure. kind is "config", "exec", or
// "protocol".
func (m *Metrics) RecordError(module, kind string) {
	m.ModuleErrors.WithLabelValues(module, kind).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
