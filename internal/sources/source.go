// Package sources implements the evidence providers consulted during a fact-check:
// a fact-check database, an encyclopedia, an instant-answer search and a news search.
//
// Every provider is failure-tolerant. Lookup never returns an error; network,
// decode and timeout failures come back as a result with OK=false so the
// orchestrator can treat them as absence of evidence.
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/metrics"
	"github.com/ppiankov/chainbreaker/internal/model"
)

// Source defines the interface for evidence providers
type Source interface {
	// Kind returns the tool name this source answers to
	Kind() model.SourceKind

	// Lookup runs one query. Failures are reported in the result, never as an error.
	Lookup(ctx context.Context, query string) model.SourceResult
}

// Registry maps tool names to sources
type Registry struct {
	sources map[model.SourceKind]Source
	timeout time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry. timeout bounds every lookup.
func NewRegistry(timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		sources: make(map[model.SourceKind]Source),
		timeout: timeout,
		log:     log,
		metrics: m,
	}
}

// NewDefaultRegistry registers the four built-in providers
func NewDefaultRegistry(config model.SourcesConfig, fetcher *Fetcher, log *logger.Logger, m *metrics.Metrics) *Registry {
	registry := NewRegistry(config.Timeout, log, m)
	registry.Register(NewFactCheckSource(fetcher, config.FactCheckURL, config.FactCheckAPIKey))
	registry.Register(NewWikipediaSource(fetcher, config.WikipediaURL))
	registry.Register(NewDuckDuckGoSource(fetcher, config.DuckDuckGoURL))
	registry.Register(NewNewsSource(fetcher, config.NewsURL, config.NewsAPIKey))
	return registry
}

// Register adds or replaces the source for its kind
func (r *Registry) Register(source Source) {
	r.sources[source.Kind()] = source
}

// Has reports whether kind is registered
func (r *Registry) Has(kind model.SourceKind) bool {
	_, ok := r.sources[kind]
	return ok
}

// Kinds returns registered kinds in fallback priority order
func (r *Registry) Kinds() []model.SourceKind {
	kinds := make([]model.SourceKind, 0, len(r.sources))
	for _, kind := range model.SourcePriority {
		if r.Has(kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Lookup dispatches query to the source for kind under the registry timeout.
// Unknown kinds and panicking sources yield a failed result.
func (r *Registry) Lookup(ctx context.Context, kind model.SourceKind, query string) (result model.SourceResult) {
	source, ok := r.sources[kind]
	if !ok {
		return model.FailedResult(kind, fmt.Sprintf("unknown tool %q", kind))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("source panicked", "source", kind, "panic", rec)
			result = model.FailedResult(kind, "internal error")
		}
		if result == nil {
			result = model.FailedResult(kind, "no result")
		}
		r.metrics.ToolCall(string(kind), outcome(result))
		r.log.Debug("lookup finished",
			"source", kind,
			"ok", result.Succeeded(),
			"found", result.Found(),
			"duration", time.Since(start))
	}()

	return source.Lookup(ctx, query)
}

func outcome(result model.SourceResult) string {
	switch {
	case !result.Succeeded():
		return metrics.OutcomeFailed
	case result.Found():
		return metrics.OutcomeFound
	default:
		return metrics.OutcomeEmpty
	}
}
