package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. It satisfies the pipeline recorder
// and the model client observer.
type Metrics struct {
	stageDuration      *prometheus.HistogramVec
	runs               *prometheus.CounterVec
	extractionFailures *prometheus.CounterVec
	backendCalls       *prometheus.CounterVec
	renderErrors       prometheus.Counter
	sessionsActive     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uiagent_pipeline_stage_duration_seconds",
				Help:    "Duration of one pipeline stage exchange.",
				Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"stage"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uiagent_pipeline_runs_total",
				Help: "Pipeline runs by outcome.",
			},
			[]string{"outcome"},
		),
		extractionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uiagent_extraction_failures_total",
				Help: "Stage outputs that degraded to a fallback value.",
			},
			[]string{"stage"},
		),
		backendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uiagent_backend_calls_total",
				Help: "Model backend exchanges by backend, stage and result.",
			},
			[]string{"backend", "stage", "result"},
		),
		renderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uiagent_render_errors_total",
			Help: "Nodes resolved to a renderError because their type is unknown.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uiagent_sessions_active",
			Help: "Sessions currently held in memory.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.stageDuration, m.runs, m.extractionFailures, m.backendCalls, m.renderErrors, m.sessionsActive)
	}
	return m
}

func (m *Metrics) ObserveStage(stage string, took time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(took.Seconds())
}

func (m *Metrics) ExtractionFailed(stage string) {
	m.extractionFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) RunFinished(outcome string) {
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCompletion(backend, stage string, _ time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.backendCalls.WithLabelValues(backend, stage, result).Inc()
}

// UnknownComponent counts one unresolvable node.
func (m *Metrics) UnknownComponent(string) { m.renderErrors.Inc() }

// SetSessions records the live session count.
func (m *Metrics) SetSessions(n int) { m.sessionsActive.Set(float64(n)) }

// NewRegistry returns a registry carrying the process and Go runtime
// collectors alongside whatever the caller registers.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
