package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/chainbreaker/internal/metrics"
	"github.com/ppiankov/chainbreaker/internal/model"
	"github.com/ppiankov/chainbreaker/internal/rumour"
	"github.com/ppiankov/chainbreaker/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockChecker struct {
	HandleFunc func(ctx context.Context, req rumour.Request) (*rumour.Result, error)
	requests   []rumour.Request
}

func (m *mockChecker) Handle(ctx context.Context, req rumour.Request) (*rumour.Result, error) {
	m.requests = append(m.requests, req)
	if m.HandleFunc != nil {
		return m.HandleFunc(ctx, req)
	}
	return &rumour.Result{
		Verdict:   model.Verdict{Label: model.LabelTrue, Confidence: 80, Summary: "ok", Sources: []model.Citation{}, ToolCalls: 2},
		Reply:     "reply",
		RumourID:  "r-1",
		Count:     1,
		ToolCalls: 2,
	}, nil
}

type mockDashboard struct {
	snap  *store.Snapshot
	err   error
	limit int
}

func (m *mockDashboard) Dashboard(ctx context.Context, limit int) (*store.Snapshot, error) {
	m.limit = limit
	return m.snap, m.err
}

func newTestServer(checker FactChecker, dashboard DashboardSource) (*Server, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := New(Options{DashboardLimit: 5, Gatherer: reg}, checker, dashboard, nil, m)
	return s, reg
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(&mockChecker{}, nil)

	w := do(s, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestFactCheck_Success(t *testing.T) {
	checker := &mockChecker{}
	s, _ := newTestServer(checker, nil)

	w := do(s, http.MethodPost, "/api/factCheck", `{"message":"  Is the sky green? ","groupId":-1001234,"userId":42,"chat_name":"Friends","messageId":77}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, checker.requests, 1)
	req := checker.requests[0]
	assert.Equal(t, "Is the sky green?", req.Claim)
	assert.Equal(t, "-1001234", req.ChatID)
	assert.Equal(t, "Friends", req.DisplayName)
	assert.Equal(t, "77", req.MessageID)

	var body factCheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "reply", body.Reply)
	assert.Equal(t, model.LabelTrue, body.Verdict.Label)
	assert.Equal(t, 2, body.ToolCalls)
	assert.Equal(t, "r-1", body.RumourID)
}

func TestFactCheck_FieldAliases(t *testing.T) {
	checker := &mockChecker{}
	s, _ := newTestServer(checker, nil)

	w := do(s, http.MethodPost, "/api/factCheck", `{"claim":"c","message":"ignored","chatId":"abc","userId":"42","displayName":"Name","chat_name":"other"}`)

	require.Equal(t, http.StatusOK, w.Code)
	req := checker.requests[0]
	assert.Equal(t, "c", req.Claim)
	assert.Equal(t, "abc", req.ChatID)
	assert.Equal(t, "Name", req.DisplayName)

	do(s, http.MethodPost, "/api/factCheck", `{"message":"c","groupId":null,"userId":42}`)
	assert.Equal(t, "42", checker.requests[1].ChatID)
}

func TestFactCheck_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		error string
	}{
		{"missing message", `{"groupId":1}`, "Message is required"},
		{"blank message", `{"message":"   ","groupId":1}`, "Message is required"},
		{"missing chat", `{"message":"claim"}`, "groupId or userId required"},
		{"malformed json", `{"message":`, "Invalid request body"},
		{"bad id type", `{"message":"c","groupId":{"x":1}}`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &mockChecker{}
			s, _ := newTestServer(checker, nil)

			w := do(s, http.MethodPost, "/api/factCheck", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"`+tt.error+`"}`, w.Body.String())
			assert.Empty(t, checker.requests)
		})
	}
}

func TestFactCheck_PersistenceFailure(t *testing.T) {
	checker := &mockChecker{HandleFunc: func(ctx context.Context, req rumour.Request) (*rumour.Result, error) {
		return nil, errors.New("database is locked")
	}}
	s, _ := newTestServer(checker, nil)

	w := do(s, http.MethodPost, "/api/factCheck", `{"message":"claim","userId":1}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Internal server error"}`, w.Body.String())
}

func TestFactCheck_RequestContextDetached(t *testing.T) {
	checker := &mockChecker{HandleFunc: func(ctx context.Context, req rumour.Request) (*rumour.Result, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &rumour.Result{Reply: "ok"}, nil
	}}
	s, _ := newTestServer(checker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/factCheck", strings.NewReader(`{"message":"claim","userId":1}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDashboard(t *testing.T) {
	dashboard := &mockDashboard{snap: &store.Snapshot{
		Chats:       []store.Chat{{ChatID: "1", ChatName: "A", Platform: "telegram"}},
		Rumours:     []store.Rumour{},
		MessageLogs: []store.MessageLog{},
	}}
	s, _ := newTestServer(&mockChecker{}, dashboard)

	w := do(s, http.MethodGet, "/api/dashboard", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, dashboard.limit)
	var body map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body["chats"], 1)
	assert.Contains(t, body, "rumours")
	assert.Contains(t, body, "messageLogs")

	dashboard.err = errors.New("boom")
	w = do(s, http.MethodGet, "/api/dashboard", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDashboard_Disabled(t *testing.T) {
	s, _ := newTestServer(&mockChecker{}, nil)
	w := do(s, http.MethodGet, "/api/dashboard", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(&mockChecker{}, nil)

	do(s, http.MethodGet, "/health", "")
	w := do(s, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `chainbreaker_http_requests_total{code="200",route="/health"} 1`)
}

func TestFlexID(t *testing.T) {
	tests := map[string]flexID{
		`"abc"`:          "abc",
		`" 12 "`:         "12",
		`-1001234567`:    "-1001234567",
		`null`:           "",
		`12345678901234`: "12345678901234",
	}
	for input, want := range tests {
		var got flexID
		require.NoError(t, json.Unmarshal([]byte(input), &got), input)
		assert.Equal(t, want, got, input)
	}

	var bad flexID
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}
