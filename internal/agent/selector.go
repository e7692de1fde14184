package agent

import (
	"context"

	"github.com/ppiankov/chainbreaker/internal/extract"
	"github.com/ppiankov/chainbreaker/internal/llm"
	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/model"
)

// Selection is the next evidence lookup to run
type Selection struct {
	Source model.SourceKind
	Query  string

	// Fallback is set when the choice came from the fixed priority order instead of the model
	Fallback bool
}

// Selector decides which unused source to query next
type Selector struct {
	completer llm.Completer
	kinds     []model.SourceKind
	log       *logger.Logger
}

// NewSelector creates a selector over kinds, which must be in fallback priority
// order. A nil completer always uses the priority order.
func NewSelector(completer llm.Completer, kinds []model.SourceKind, log *logger.Logger) *Selector {
	if log == nil {
		log = logger.Nop()
	}
	return &Selector{completer: completer, kinds: append([]model.SourceKind(nil), kinds...), log: log}
}

// Next returns the next lookup for claim, or false when every source has been used
func (s *Selector) Next(ctx context.Context, claim string, used []model.SourceKind) (Selection, bool) {
	unused := s.unused(used)
	if len(unused) == 0 {
		return Selection{}, false
	}

	fallback := Selection{Source: unused[0], Query: claim, Fallback: true}

	if s.completer == nil {
		return fallback, true
	}

	raw, err := s.completer.Complete(ctx, BuildToolPrompt(claim, used))
	if err != nil {
		s.log.Warn("tool selection failed, using priority order", "error", err, "source", fallback.Source)
		return fallback, true
	}

	parsed := extract.JSON(raw)
	action := extract.String(parsed, "action")
	if action == "" {
		s.log.Warn("unparsable tool selection, using priority order", "source", fallback.Source)
		return fallback, true
	}

	kind, ok := model.ParseSourceKind(action)
	if !ok || !contains(unused, kind) {
		s.log.Warn("invalid tool selected, using priority order", "action", action, "source", fallback.Source)
		return fallback, true
	}

	query := extract.String(parsed, "input")
	if query == "" {
		query = claim
	}

	return Selection{Source: kind, Query: query}, true
}

func (s *Selector) unused(used []model.SourceKind) []model.SourceKind {
	unused := make([]model.SourceKind, 0, len(s.kinds))
	for _, kind := range s.kinds {
		if !contains(used, kind) {
			unused = append(unused, kind)
		}
	}
	return unused
}

func contains(kinds []model.SourceKind, kind model.SourceKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
