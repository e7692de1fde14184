package pipeline

import (
	"context"
	"time"

	"github.com/ppiankov/chainbreaker/internal/agent"
	"github.com/ppiankov/chainbreaker/internal/cache"
	"github.com/ppiankov/chainbreaker/internal/llm"
	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/metrics"
	"github.com/ppiankov/chainbreaker/internal/model"
	"github.com/ppiankov/chainbreaker/internal/sources"
	"github.com/ppiankov/chainbreaker/internal/worker"
)

// MaxToolCalls bounds the number of evidence lookups per claim
const MaxToolCalls = 3

const (
	noEvidenceSummary  = "Unable to gather any evidence."
	failureSummary     = "Error during fact-checking process."
	terminalConfidence = 20
)

// Gatherer runs evidence lookups. *sources.Registry satisfies it.
type Gatherer interface {
	Kinds() []model.SourceKind
	Lookup(ctx context.Context, kind model.SourceKind, query string) model.SourceResult
}

// Pipeline orchestrates one fact-check: pick a source, look it up, repeat
// within the budget, then synthesize a verdict.
type Pipeline struct {
	gatherer Gatherer
	selector *agent.Selector
	judge    *agent.Judge
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// New wires a pipeline from its parts. A nil completer runs fully deterministic.
func New(gatherer Gatherer, completer llm.Completer, log *logger.Logger, m *metrics.Metrics) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		gatherer: gatherer,
		selector: agent.NewSelector(completer, gatherer.Kinds(), log.With("component", "selector")),
		judge:    agent.NewJudge(completer, log.With("component", "judge"), m),
		log:      log,
		metrics:  m,
	}
}

// NewPipeline builds the evidence cache, rate limiter, sources and model chain
// from configuration
func NewPipeline(ctx context.Context, cfg *model.Config, log *logger.Logger, m *metrics.Metrics) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}

	fetcherOpts := sources.FetcherOptions{
		Timeout:    cfg.Sources.Timeout,
		UserAgent:  cfg.Sources.UserAgent,
		CacheTTL:   cfg.Cache.TTL,
		Limiter:    newLimiter(cfg.RateLimiting),
		HTTPProxy:  cfg.Sources.HTTPProxy,
		HTTPSProxy: cfg.Sources.HTTPSProxy,
	}
	if cfg.Cache.Enabled {
		fetcherOpts.Cache = newEvidenceCache(ctx, cfg.Cache, log)
	}

	registry := sources.NewDefaultRegistry(cfg.Sources, sources.NewFetcher(fetcherOpts), log.With("component", "sources"), m)

	var completer llm.Completer
	chain, err := llm.NewChain(llm.ConfigFromModel(cfg.LLM), log.With("component", "llm"), m)
	switch {
	case err != nil:
		log.Warn("failed to initialize LLM provider, using deterministic fallbacks", "error", err)
	case !chain.IsEnabled():
		log.Info("no LLM provider configured, using deterministic fallbacks")
	default:
		log.Info("LLM chain ready", "provider", chain.ProviderName(), "models", chain.Models())
		completer = chain
	}

	return New(registry, completer, log, m)
}

func newLimiter(cfg model.RateLimitConfig) *worker.Limiter {
	hosts := make([]worker.HostRate, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		hosts = append(hosts, worker.HostRate{Host: h.Host, RequestsPerSecond: h.RequestsPerSecond, Burst: h.BurstSize})
	}
	return worker.NewLimiter(cfg.RequestsPerSecond, cfg.BurstSize, hosts...)
}

// newEvidenceCache layers redis behind the in-process cache when an address is configured
func newEvidenceCache(ctx context.Context, cfg model.CacheConfig, log *logger.Logger) cache.Cache {
	memory := cache.NewMemoryCache(cfg.TTL, cfg.MaxItems)
	if cfg.RedisAddr == "" {
		return memory
	}

	remote, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)
	if err != nil {
		log.Warn("redis unavailable, caching in memory only", "addr", cfg.RedisAddr, "error", err)
		return memory
	}
	return cache.NewLayeredCache(memory, remote)
}

// Check runs the full fact-check for claim. It always returns a verdict.
func (p *Pipeline) Check(ctx context.Context, claim string) (verdict model.Verdict) {
	start := time.Now()
	var history []model.EvidenceRecord

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("fact-check failed", "panic", r, "claim", claim, "tool_calls", len(history))
			verdict = model.Unverified(terminalConfidence, failureSummary)
			verdict.ToolCalls = len(history)
		}
		p.metrics.ObserveCheck(string(verdict.Label), time.Since(start))
	}()

	history = p.gather(ctx, claim)

	if len(history) == 0 {
		p.log.Warn("no evidence gathered", "claim", claim)
		return model.Unverified(terminalConfidence, noEvidenceSummary)
	}

	verdict = p.judge.Verdict(ctx, claim, history)
	verdict.ToolCalls = len(history)
	if verdict.Sources == nil {
		verdict.Sources = []model.Citation{}
	}

	p.log.Debug("fact-check complete",
		"label", verdict.Label,
		"confidence", verdict.Confidence,
		"tool_calls", verdict.ToolCalls,
		"duration", time.Since(start))

	return verdict
}

// gather runs up to MaxToolCalls lookups, one at a time. Each selection sees
// every source already used.
func (p *Pipeline) gather(ctx context.Context, claim string) []model.EvidenceRecord {
	history := make([]model.EvidenceRecord, 0, MaxToolCalls)
	used := make([]model.SourceKind, 0, MaxToolCalls)

	for i := 0; i < MaxToolCalls; i++ {
		selection, ok := p.selector.Next(ctx, claim, used)
		if !ok {
			break
		}

		p.log.Debug("looking up evidence", "step", i+1, "source", selection.Source, "query", selection.Query, "fallback", selection.Fallback)

		result := p.gatherer.Lookup(ctx, selection.Source, selection.Query)
		history = append(history, model.EvidenceRecord{
			Source: selection.Source,
			Query:  selection.Query,
			Result: result,
		})
		used = append(used, selection.Source)
	}

	return history
}
