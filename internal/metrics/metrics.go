// Package metrics provides Prometheus instrumentation for fact-checks, model calls,
// evidence lookups and rumour broadcasts.
//
// All recording methods are safe to call on a nil *Metrics, so components can be
// constructed without instrumentation in tests and one-off CLI runs.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "chainbreaker"

// Outcome labels for evidence lookups
const (
	OutcomeFound  = "found"
	OutcomeEmpty  = "empty"
	OutcomeFailed = "failed"
)

// Status labels for model attempts
const (
	AttemptSuccess = "success"
	AttemptError   = "error"
	AttemptShort   = "short"
)

// Metrics holds all chainbreaker collectors
type Metrics struct {
	// ChecksTotal counts orchestration runs by verdict label.
	ChecksTotal *prometheus.CounterVec

	// CheckDurationSeconds measures a full orchestration run.
	CheckDurationSeconds prometheus.Histogram

	// ToolCallsTotal counts evidence lookups by source and outcome (found, empty, failed).
	ToolCallsTotal *prometheus.CounterVec

	// ModelAttemptsTotal counts model calls by model and status (success, error, short).
	ModelAttemptsTotal *prometheus.CounterVec

	// VerdictPathTotal counts which synthesizer path produced the verdict (model, fallback).
	VerdictPathTotal *prometheus.CounterVec

	// RumourSightingsTotal counts inbound claims by kind (new, repeat).
	RumourSightingsTotal *prometheus.CounterVec

	// BroadcastsTotal counts rumour broadcasts triggered.
	BroadcastsTotal prometheus.Counter

	// BroadcastSendsTotal counts per-chat broadcast deliveries by status (ok, error).
	BroadcastSendsTotal *prometheus.CounterVec

	// HTTPRequestsTotal counts API requests by route and status code.
	HTTPRequestsTotal *prometheus.CounterVec
}

// New creates and registers all collectors with reg. A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "checks_total",
				Help:      "Total fact-check runs by verdict label",
			},
			[]string{"label"},
		),
		CheckDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "check_duration_seconds",
				Help:      "Duration of a fact-check run in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
		),
		ToolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tool_calls_total",
				Help:      "Evidence lookups by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		ModelAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "model_attempts_total",
				Help:      "Model completion attempts by model and status",
			},
			[]string{"model", "status"},
		),
		VerdictPathTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "verdict_path_total",
				Help:      "Verdicts by synthesizer path",
			},
			[]string{"path"},
		),
		RumourSightingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "rumour",
				Name:      "sightings_total",
				Help:      "Inbound claims by sighting kind",
			},
			[]string{"kind"},
		),
		BroadcastsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "rumour",
				Name:      "broadcasts_total",
				Help:      "Repeated-rumour broadcasts triggered",
			},
		),
		BroadcastSendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "rumour",
				Name:      "broadcast_sends_total",
				Help:      "Per-chat broadcast deliveries by status",
			},
			[]string{"status"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "API requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// ObserveCheck records a finished orchestration run.
func (m *Metrics) ObserveCheck(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(label).Inc()
	m.CheckDurationSeconds.Observe(duration.Seconds())
}

// ToolCall records one evidence lookup.
func (m *Metrics) ToolCall(source, outcome string) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(source, outcome).Inc()
}

// ModelAttempt records one model completion attempt.
func (m *Metrics) ModelAttempt(model, status string) {
	if m == nil {
		return
	}
	m.ModelAttemptsTotal.WithLabelValues(model, status).Inc()
}

// VerdictPath records which synthesizer path produced a verdict.
func (m *Metrics) VerdictPath(path string) {
	if m == nil {
		return
	}
	m.VerdictPathTotal.WithLabelValues(path).Inc()
}

// RumourSighting records an inbound claim as "new" or "repeat".
func (m *Metrics) RumourSighting(kind string) {
	if m == nil {
		return
	}
	m.RumourSightingsTotal.WithLabelValues(kind).Inc()
}

// Broadcast records a triggered broadcast.
func (m *Metrics) Broadcast() {
	if m == nil {
		return
	}
	m.BroadcastsTotal.Inc()
}

// BroadcastSend records one per-chat delivery.
func (m *Metrics) BroadcastSend(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BroadcastSendsTotal.WithLabelValues(status).Inc()
}

// HTTPRequest records one API request.
func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
