// Package rumour deduplicates inbound claims and escalates repeated ones.
//
// Every claim is keyed by its normalized text. The first sighting runs a full
// fact-check and stores the verdict; later sightings bump a shared counter,
// reuse the stored reply when one exists, and trigger a one-time broadcast to
// every chat once the counter reaches BroadcastThreshold.
package rumour

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/metrics"
	"github.com/ppiankov/chainbreaker/internal/model"
	"github.com/ppiankov/chainbreaker/internal/pipeline"
	"github.com/ppiankov/chainbreaker/internal/store"
)

// BroadcastThreshold is the sighting count that triggers the broadcast
const BroadcastThreshold = 3

var (
	ErrEmptyClaim  = errors.New("claim is required")
	ErrMissingChat = errors.New("chat id is required")
)

// Checker runs one fact-check
type Checker interface {
	Check(ctx context.Context, claim string) model.Verdict
}

// Repository is the persistence the service needs. *store.Store implements it.
type Repository interface {
	ChatLister
	UpsertChat(ctx context.Context, chatID, chatName, platform string) (*store.Chat, error)
	FindMatch(ctx context.Context, normalized string) (*store.RumourMatch, error)
	CreateMatch(ctx context.Context, normalized string) (*store.RumourMatch, bool, error)
	IncrementMatch(ctx context.Context, id uuid.UUID) (*store.RumourMatch, error)
	MarkBroadcasted(ctx context.Context, id uuid.UUID) (bool, error)
	LinkMatch(ctx context.Context, matchID, rumourID uuid.UUID) error
	CreateRumour(ctx context.Context, rumour *store.Rumour) error
	FindRumour(ctx context.Context, id uuid.UUID) (*store.Rumour, error)
	CreateMessageLog(ctx context.Context, entry *store.MessageLog) error
	LatestReply(ctx context.Context, chatTableID, rumourID uuid.UUID) (*store.MessageLog, error)
}

// Request is one inbound claim
type Request struct {
	Claim       string
	ChatID      string
	DisplayName string
	MessageID   string
	Platform    string
}

// Result describes how a claim was answered
type Result struct {
	Verdict     model.Verdict
	Reply       string
	Reused      bool
	Regenerated bool
	Broadcasted bool
	RumourID    string
	Count       int
	ToolCalls   int
}

// Service handles inbound claims
type Service struct {
	repo       Repository
	checker    Checker
	dispatcher *Dispatcher
	log        *logger.Logger
	metrics    *metrics.Metrics
}

// NewService creates the rumour service
func NewService(repo Repository, checker Checker, dispatcher *Dispatcher, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:       repo,
		checker:    checker,
		dispatcher: dispatcher,
		log:        log.With("service", "RumourService"),
		metrics:    m,
	}
}

// Handle answers req. Errors are persistence failures only; everything the
// fact-check itself can hit is folded into the verdict.
func (s *Service) Handle(ctx context.Context, req Request) (*Result, error) {
	claim := strings.TrimSpace(req.Claim)
	if claim == "" {
		return nil, ErrEmptyClaim
	}
	if strings.TrimSpace(req.ChatID) == "" {
		return nil, ErrMissingChat
	}

	result, err := s.handle(ctx, req, claim)
	if err != nil {
		s.log.Error("fact-check request failed", "chat_id", req.ChatID, "claim", claim, "error", err)
		return nil, err
	}
	return result, nil
}

func (s *Service) handle(ctx context.Context, req Request, claim string) (*Result, error) {
	chat, err := s.repo.UpsertChat(ctx, req.ChatID, req.DisplayName, req.Platform)
	if err != nil {
		return nil, err
	}

	normalized := model.Normalize(claim)

	match, err := s.repo.FindMatch(ctx, normalized)
	switch {
	case err == nil:
		return s.repeat(ctx, req, chat, match, claim, normalized)
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("find rumour match: %w", err)
	}

	match, created, err := s.repo.CreateMatch(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if !created {
		// Another request saw this claim first
		return s.repeat(ctx, req, chat, match, claim, normalized)
	}

	return s.firstSighting(ctx, req, chat, match, claim)
}

func (s *Service) firstSighting(ctx context.Context, req Request, chat *store.Chat, match *store.RumourMatch, claim string) (*Result, error) {
	s.metrics.RumourSighting("new")

	verdict := s.checker.Check(ctx, claim)
	reply := pipeline.FormatVerdict(verdict)

	rumour, err := s.createRumour(ctx, chat, match, claim, verdict)
	if err != nil {
		return nil, err
	}

	if err := s.appendLog(ctx, chat, &rumour.ID, req.MessageID, claim, reply); err != nil {
		return nil, err
	}

	s.log.Info("new rumour", "rumour_id", rumour.ID, "chat_id", chat.ChatID, "label", verdict.Label)

	return &Result{
		Verdict:   verdict,
		Reply:     reply,
		RumourID:  rumour.ID.String(),
		Count:     match.Count,
		ToolCalls: verdict.ToolCalls,
	}, nil
}

func (s *Service) repeat(ctx context.Context, req Request, chat *store.Chat, match *store.RumourMatch, claim, normalized string) (*Result, error) {
	s.metrics.RumourSighting("repeat")

	updated, err := s.repo.IncrementMatch(ctx, match.ID)
	if err != nil {
		return nil, err
	}

	result := &Result{Count: updated.Count}

	if updated.Count >= BroadcastThreshold && !updated.Broadcasted {
		won, err := s.repo.MarkBroadcasted(ctx, updated.ID)
		if err != nil {
			return nil, err
		}
		if won {
			s.log.Info("rumour threshold reached, broadcasting", "normalized", normalized, "count", updated.Count)
			result.Broadcasted = true
			if s.dispatcher != nil {
				s.dispatcher.Broadcast(BroadcastText(normalized, updated.Count))
			}
		}
	}

	rumour, cached, err := s.cachedReply(ctx, updated)
	if err != nil {
		return nil, err
	}

	if cached != nil {
		if err := s.appendLog(ctx, chat, &rumour.ID, req.MessageID, claim, cached.AIResponse); err != nil {
			return nil, err
		}
		result.Verdict = s.snapshotVerdict(rumour)
		result.Reply = cached.AIResponse
		result.Reused = true
		result.RumourID = rumour.ID.String()
		return result, nil
	}

	verdict := s.checker.Check(ctx, claim)
	reply := pipeline.FormatVerdict(verdict)

	if rumour == nil {
		// The first sighting never finished; adopt this run as the rumour
		rumour, err = s.createRumour(ctx, chat, updated, claim, verdict)
		if err != nil {
			return nil, err
		}
	}

	if err := s.appendLog(ctx, chat, &rumour.ID, req.MessageID, claim, reply); err != nil {
		return nil, err
	}

	result.Verdict = verdict
	result.Reply = reply
	result.Regenerated = true
	result.RumourID = rumour.ID.String()
	result.ToolCalls = verdict.ToolCalls
	return result, nil
}

// cachedReply finds the rumour linked to match and the latest reply sent to
// the chat that first reported it. Either may be nil.
func (s *Service) cachedReply(ctx context.Context, match *store.RumourMatch) (*store.Rumour, *store.MessageLog, error) {
	if match.RumourID == nil {
		return nil, nil, nil
	}

	rumour, err := s.repo.FindRumour(ctx, *match.RumourID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find rumour: %w", err)
	}
	if rumour.ChatTableID == nil {
		return rumour, nil, nil
	}

	entry, err := s.repo.LatestReply(ctx, *rumour.ChatTableID, rumour.ID)
	if errors.Is(err, store.ErrNotFound) {
		return rumour, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find latest reply: %w", err)
	}
	return rumour, entry, nil
}

func (s *Service) createRumour(ctx context.Context, chat *store.Chat, match *store.RumourMatch, claim string, verdict model.Verdict) (*store.Rumour, error) {
	snapshot, err := json.Marshal(verdict)
	if err != nil {
		return nil, fmt.Errorf("encode verdict: %w", err)
	}

	rumour := &store.Rumour{
		ChatTableID:     &chat.ID,
		MsgContent:      claim,
		Status:          string(verdict.Label),
		FactCheckResult: snapshot,
	}
	if len(verdict.Sources) > 0 {
		rumour.FactCheckSource = verdict.Sources[0].URL
	}

	if err := s.repo.CreateRumour(ctx, rumour); err != nil {
		return nil, err
	}
	if err := s.repo.LinkMatch(ctx, match.ID, rumour.ID); err != nil {
		return nil, err
	}
	return rumour, nil
}

func (s *Service) appendLog(ctx context.Context, chat *store.Chat, rumourID *uuid.UUID, messageID, claim, reply string) error {
	return s.repo.CreateMessageLog(ctx, &store.MessageLog{
		ChatTableID: chat.ID,
		RumourID:    rumourID,
		MessageID:   messageID,
		Content:     claim,
		AIResponse:  reply,
		Processed:   true,
	})
}

// snapshotVerdict decodes the verdict stored with a rumour. A corrupt
// snapshot falls back to the rumour status.
func (s *Service) snapshotVerdict(rumour *store.Rumour) model.Verdict {
	var verdict model.Verdict
	if len(rumour.FactCheckResult) > 0 {
		if err := json.Unmarshal(rumour.FactCheckResult, &verdict); err != nil {
			s.log.Warn("corrupt fact-check snapshot", "rumour_id", rumour.ID, "error", err)
			verdict = model.Verdict{}
		}
	}
	if verdict.Label == "" {
		verdict.Label = model.Label(rumour.Status)
	}
	if verdict.Sources == nil {
		verdict.Sources = []model.Citation{}
	}
	return verdict
}
