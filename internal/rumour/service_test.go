package rumour

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/metrics"
	"github.com/ppiankov/chainbreaker/internal/model"
	"github.com/ppiankov/chainbreaker/internal/store"
)

type countingChecker struct {
	mu      sync.Mutex
	calls   int
	verdict model.Verdict
}

func (c *countingChecker) Check(ctx context.Context, claim string) model.Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.verdict
}

func (c *countingChecker) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingSender struct {
	mu     sync.Mutex
	sent   map[string][]string
	failOn string
}

func (r *recordingSender) SendText(ctx context.Context, chatID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chatID == r.failOn {
		return errors.New("chat not found")
	}
	if r.sent == nil {
		r.sent = make(map[string][]string)
	}
	r.sent[chatID] = append(r.sent[chatID], text)
	return nil
}

func (r *recordingSender) Sent(chatID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[chatID]
}

type fixture struct {
	store      *store.Store
	checker    *countingChecker
	sender     *recordingSender
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	service    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(context.Background(), model.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	checker := &countingChecker{verdict: model.Verdict{
		Label:      model.LabelFalse,
		Confidence: 85,
		Summary:    "No credible coverage.",
		Sources:    []model.Citation{{Name: "Snopes", URL: "https://snopes.com/x"}},
		ToolCalls:  3,
	}}
	sender := &recordingSender{}
	m := metrics.New(prometheus.NewRegistry())
	dispatcher := NewDispatcher(sender, s, 0, nil, m)

	return &fixture{
		store:      s,
		checker:    checker,
		sender:     sender,
		dispatcher: dispatcher,
		metrics:    m,
		service:    NewService(s, checker, dispatcher, nil, m),
	}
}

func TestHandle_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Handle(context.Background(), Request{Claim: "   ", ChatID: "1"})
	assert.ErrorIs(t, err, ErrEmptyClaim)

	_, err = f.service.Handle(context.Background(), Request{Claim: "claim"})
	assert.ErrorIs(t, err, ErrMissingChat)
}

func TestHandle_FirstSighting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.service.Handle(ctx, Request{Claim: "The Moon is made of cheese", ChatID: "100", DisplayName: "Family", MessageID: "7"})
	require.NoError(t, err)

	assert.False(t, res.Reused)
	assert.False(t, res.Regenerated)
	assert.False(t, res.Broadcasted)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 3, res.ToolCalls)
	assert.Equal(t, model.LabelFalse, res.Verdict.Label)
	assert.Contains(t, res.Reply, "_FALSE_")
	assert.Equal(t, 1, f.checker.Calls())

	match, err := f.store.FindMatch(ctx, "the moon is made of cheese")
	require.NoError(t, err)
	require.NotNil(t, match.RumourID)
	assert.Equal(t, res.RumourID, match.RumourID.String())
	assert.Equal(t, 100.0, match.Similarity)

	rumour, err := f.store.FindRumour(ctx, *match.RumourID)
	require.NoError(t, err)
	assert.Equal(t, "The Moon is made of cheese", rumour.MsgContent)
	assert.Equal(t, "false", rumour.Status)
	assert.Equal(t, "https://snopes.com/x", rumour.FactCheckSource)

	chat, err := f.store.FindChat(ctx, "100")
	require.NoError(t, err)
	entry, err := f.store.LatestReply(ctx, chat.ID, rumour.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Reply, entry.AIResponse)
	assert.Equal(t, "7", entry.MessageID)
	assert.True(t, entry.Processed)
}

func TestHandle_CountSequenceAndSingleBroadcast(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.store.UpsertChat(ctx, "other-group", "Other", "")
	require.NoError(t, err)

	claims := []string{"Bank X is bankrupt", "  bank x is BANKRUPT ", "BANK X IS BANKRUPT", "bank x is bankrupt"}
	wantBroadcast := []bool{false, false, true, false}

	for i, claim := range claims {
		res, err := f.service.Handle(ctx, Request{Claim: claim, ChatID: "100"})
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Count, "sighting %d", i+1)
		assert.Equal(t, wantBroadcast[i], res.Broadcasted, "sighting %d", i+1)
	}

	f.dispatcher.Wait()

	match, err := f.store.FindMatch(ctx, "bank x is bankrupt")
	require.NoError(t, err)
	assert.Equal(t, 4, match.Count)
	assert.True(t, match.Broadcasted)

	for _, chatID := range []string{"100", "other-group"} {
		sent := f.sender.Sent(chatID)
		require.Len(t, sent, 1, "chat %s", chatID)
		assert.Equal(t, BroadcastText("bank x is bankrupt", 3), sent[0])
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BroadcastsTotal))
}

func TestHandle_ReuseSkipsFactCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.service.Handle(ctx, Request{Claim: "Water is wet", ChatID: "100"})
	require.NoError(t, err)

	second, err := f.service.Handle(ctx, Request{Claim: "water is wet", ChatID: "100"})
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.False(t, second.Regenerated)
	assert.Equal(t, first.Reply, second.Reply)
	assert.Equal(t, first.RumourID, second.RumourID)
	assert.Equal(t, model.LabelFalse, second.Verdict.Label)
	assert.Equal(t, 0, second.ToolCalls)

	// A different chat gets the reply first sent to the originating chat
	third, err := f.service.Handle(ctx, Request{Claim: "WATER IS WET", ChatID: "200"})
	require.NoError(t, err)
	assert.True(t, third.Reused)
	assert.Equal(t, first.Reply, third.Reply)

	assert.Equal(t, 1, f.checker.Calls())
}

func TestHandle_RegeneratesWithoutLinkedRumour(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A match left behind by a first sighting that never completed
	_, _, err := f.store.CreateMatch(ctx, "orphan claim")
	require.NoError(t, err)

	res, err := f.service.Handle(ctx, Request{Claim: "Orphan claim", ChatID: "100"})
	require.NoError(t, err)
	assert.True(t, res.Regenerated)
	assert.False(t, res.Reused)
	assert.Equal(t, 2, res.Count)
	assert.NotEmpty(t, res.RumourID)
	assert.Equal(t, 1, f.checker.Calls())

	match, err := f.store.FindMatch(ctx, "orphan claim")
	require.NoError(t, err)
	require.NotNil(t, match.RumourID)
	assert.Equal(t, res.RumourID, match.RumourID.String())

	// Now linked and logged, so the next repeat is served from cache
	again, err := f.service.Handle(ctx, Request{Claim: "orphan claim", ChatID: "100"})
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, 1, f.checker.Calls())
}

func TestHandle_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Close())

	_, err := f.service.Handle(context.Background(), Request{Claim: "claim", ChatID: "100"})
	assert.Error(t, err)
	assert.Equal(t, 0, f.checker.Calls())
}

func TestDispatcher_FailureIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, id := range []string{"a", "b", "c"} {
		_, err := f.store.UpsertChat(ctx, id, "", "")
		require.NoError(t, err)
	}
	f.sender.failOn = "b"

	f.dispatcher.Broadcast("warning")
	f.dispatcher.Wait()

	assert.Len(t, f.sender.Sent("a"), 1)
	assert.Empty(t, f.sender.Sent("b"))
	assert.Len(t, f.sender.Sent("c"), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BroadcastSendsTotal.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.BroadcastSendsTotal.WithLabelValues("ok")))
}

func TestDispatcher_NilSender(t *testing.T) {
	d := NewDispatcher(nil, nil, 0, nil, nil)
	d.Broadcast("warning")
	d.Wait()
}

func TestBroadcastText(t *testing.T) {
	text := BroadcastText("the claim", 3)
	assert.True(t, strings.HasPrefix(text, "🚨 *Repeated Rumour Detected*"))
	assert.Contains(t, text, "\"the claim\"")
	assert.Contains(t, text, "reported 3 times")
}

func TestBroadcastText_EscapesMarkdown(t *testing.T) {
	text := BroadcastText("ceo_of acme *said* [link] `code`", 4)
	assert.Contains(t, text, "\"ceo\\_of acme \\*said\\* \\[link] \\`code\\`\"")
	assert.True(t, strings.HasPrefix(text, "🚨 *Repeated Rumour Detected*"))
}

func TestSnapshotVerdict_CorruptSnapshotIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	service := NewService(nil, nil, nil, &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, nil)

	verdict := service.snapshotVerdict(&store.Rumour{
		ID:              uuid.New(),
		Status:          string(model.LabelMisleading),
		FactCheckResult: []byte(`{"verdict":`),
	})

	assert.Equal(t, model.LabelMisleading, verdict.Label)
	assert.Empty(t, verdict.Sources)
	require.Equal(t, 1, logs.FilterMessage("corrupt fact-check snapshot").Len())
	fields := logs.All()[0].ContextMap()
	assert.Contains(t, fields, "rumour_id")
	assert.Contains(t, fields, "error")
}
