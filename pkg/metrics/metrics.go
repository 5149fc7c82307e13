// Package metrics exposes Prometheus instrumentation for the bid pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bidflow"

// Metrics holds every collector the services update.
type Metrics struct {
	registry *prometheus.Registry

	TasksFinished      *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	GenerationsRunning prometheus.Gauge
	GenerationRejected prometheus.Counter
	BreakersOpen       prometheus.Gauge
	OperationsLogged   *prometheus.CounterVec
	QualificationSweep *prometheus.CounterVec
	MCPToolCalls       *prometheus.CounterVec
	MCPToolDuration    *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Bid generation tasks that reached a terminal state.",
		}, []string{"status", "error_code"}),
		GenerationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent in the generation service per task.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		GenerationsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generations_running",
			Help:      "Bid generations currently in progress.",
		}),
		GenerationRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_rejected_total",
			Help:      "Generation requests rejected by the per-company limit.",
		}),
		BreakersOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation_breakers_open",
			Help:      "Companies whose generation circuit breaker is open.",
		}),
		OperationsLogged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_logged_total",
			Help:      "Operation log entries written.",
		}, []string{"operation_type", "resource_type"}),
		QualificationSweep: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qualification_status_changes_total",
			Help:      "Qualification status changes made by the expiry sweep.",
		}, []string{"status"}),
		MCPToolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mcp_tool_calls_total",
			Help:      "MCP tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		MCPToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mcp_tool_duration_seconds",
			Help:      "Time spent serving MCP tool calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}
}

// ObserveGeneration records one generation call.
func (m *Metrics) ObserveGeneration(start time.Time) {
	m.GenerationDuration.Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
