// Package telemetry wires Prometheus instrumentation for both pipelines:
// offline stage latency/outcomes and realtime session/advice activity.
// Unlike the HTTP-serving metrics collector it's adapted from, this
// package owns a private registry rather than the global default one —
// there's no HTTP transport in scope here (see Non-goals), and a private
// registry keeps repeated construction (e.g. in tests) from panicking on
// duplicate registration.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge/histogram the two pipelines report.
type Metrics struct {
	registry *prometheus.Registry

	StageDuration    *prometheus.HistogramVec
	StageOutcomes    *prometheus.CounterVec
	ConfidenceAction *prometheus.CounterVec

	HysteresisTransitions *prometheus.CounterVec
	AdviceGenerated       *prometheus.CounterVec
	AdviceSuppressed      *prometheus.CounterVec

	ActiveSessions     prometheus.Gauge
	SessionAnalyses    *prometheus.CounterVec
	AnalysisLatency    *prometheus.HistogramVec
	ReconnectAttempts  *prometheus.CounterVec
	ReconnectExhausted *prometheus.CounterVec
	DegradedMode       *prometheus.GaugeVec
}

// New builds a Metrics bundle registered against its own private
// registry, namespaced under shootcoach_.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shootcoach_offline_stage_duration_seconds",
		Help:    "Offline pipeline stage duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	m.StageOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shootcoach_offline_stage_outcomes_total",
		Help: "Offline pipeline stage outcomes",
	}, []string{"stage", "outcome"})

	m.ConfidenceAction = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shootcoach_offline_confidence_action_total",
		Help: "Final confidence-gated action taken per job",
	}, []string{"action"})

	m.HysteresisTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shootcoach_hysteresis_transitions_total",
		Help: "Motion state machine transitions",
	}, []string{"from_state", "to_state"})

	m.AdviceGenerated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shootcoach_advice_generated_total",
		Help: "Advice payloads generated, by category and priority",
	}, []string{"category", "priority"})

	m.AdviceSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shootcoach_advice_suppressed_total",
		Help: "Advice payloads suppressed by anti-flicker cooldown, by category",
	}, []string{"category"})

	m.ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shootcoach_realtime_active_sessions",
		Help: "Currently tracked realtime sessions",
	})

	m.SessionAnalyses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shootcoach_realtime_analyses_total",
		Help: "Completed realtime analysis cycles",
	}, []string{"session_id"})

	m.AnalysisLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shootcoach_realtime_analysis_latency_ms",
		Help:    "Realtime analysis cycle latency in milliseconds",
		Buckets: []float64{50, 100, 200, 300, 500, 800, 1200, 2000},
	}, []string{"algorithm"})

	m.ReconnectAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shootcoach_realtime_reconnect_attempts_total",
		Help: "Client reconnect attempts",
	}, []string{"session_id"})

	m.ReconnectExhausted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shootcoach_realtime_reconnect_exhausted_total",
		Help: "Clients that exhausted their reconnect attempt budget",
	}, []string{"session_id"})

	m.DegradedMode = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shootcoach_realtime_degraded_mode",
		Help: "1 if a session's analyzer is running in latency-degraded mode",
	}, []string{"session_id"})

	m.registry.MustRegister(
		m.StageDuration, m.StageOutcomes, m.ConfidenceAction,
		m.HysteresisTransitions, m.AdviceGenerated, m.AdviceSuppressed,
		m.ActiveSessions, m.SessionAnalyses, m.AnalysisLatency,
		m.ReconnectAttempts, m.ReconnectExhausted, m.DegradedMode,
	)

	return m
}

// Handler returns an http.Handler exposing this bundle's metrics. The
// transport that mounts it onto a mux is outside this package's scope.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
