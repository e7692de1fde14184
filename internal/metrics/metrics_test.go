package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return New(prometheus.NewRegistry())
}

func TestObserveCheck(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveCheck("false", 2*time.Second)
	m.ObserveCheck("false", time.Second)
	m.ObserveCheck("unverified", time.Second)

	if got := testutil.ToFloat64(m.ChecksTotal.WithLabelValues("false")); got != 2 {
		t.Errorf("checks_total{label=false} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ChecksTotal.WithLabelValues("unverified")); got != 1 {
		t.Errorf("checks_total{label=unverified} = %v, want 1", got)
	}
}

func TestToolCallAndModelAttempt(t *testing.T) {
	m := newTestMetrics(t)

	m.ToolCall("wikipedia", OutcomeFound)
	m.ToolCall("wikipedia", OutcomeFailed)
	m.ModelAttempt("openai/gpt-4o-mini", AttemptShort)

	if got := testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("wikipedia", OutcomeFound)); got != 1 {
		t.Errorf("tool_calls_total found = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ModelAttemptsTotal.WithLabelValues("openai/gpt-4o-mini", AttemptShort)); got != 1 {
		t.Errorf("model_attempts_total short = %v, want 1", got)
	}
}

func TestBroadcastSend(t *testing.T) {
	m := newTestMetrics(t)

	m.Broadcast()
	m.BroadcastSend(nil)
	m.BroadcastSend(errors.New("chat not found"))
	m.BroadcastSend(nil)

	if got := testutil.ToFloat64(m.BroadcastsTotal); got != 1 {
		t.Errorf("broadcasts_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BroadcastSendsTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("broadcast_sends_total{ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BroadcastSendsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("broadcast_sends_total{error} = %v, want 1", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCheck("true", time.Second)
	m.ToolCall("news_search", OutcomeEmpty)
	m.ModelAttempt("x", AttemptError)
	m.VerdictPath("fallback")
	m.RumourSighting("new")
	m.Broadcast()
	m.BroadcastSend(nil)
	m.HTTPRequest("/health", 200)
}

func TestHTTPRequest(t *testing.T) {
	m := newTestMetrics(t)
	m.HTTPRequest("/api/factCheck", 500)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/api/factCheck", "500")); got != 1 {
		t.Errorf("http requests_total = %v, want 1", got)
	}
}
