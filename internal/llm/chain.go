package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/metrics"
)

// minOutputLength is the shortest trimmed output accepted as a real answer
const minOutputLength = 10

var (
	// ErrNoProvider is returned when completions are requested with no provider configured
	ErrNoProvider = errors.New("no LLM provider configured")

	// ErrAllModelsFailed is returned when every model in the priority list failed
	ErrAllModelsFailed = errors.New("all models failed")
)

// Completer produces text for a prompt. Chain is the production implementation.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Chain walks a priority-ordered model list, trying each model once until one
// returns usable output.
type Chain struct {
	provider Provider
	config   Config
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewChain creates a model chain from configuration. An empty provider yields a
// disabled chain whose Complete always returns ErrNoProvider.
func NewChain(config Config, log *logger.Logger, m *metrics.Metrics) (*Chain, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	return NewChainWithProvider(provider, config, log, m), nil
}

// NewChainWithProvider wraps an existing provider
func NewChainWithProvider(provider Provider, config Config, log *logger.Logger, m *metrics.Metrics) *Chain {
	if log == nil {
		log = logger.Nop()
	}
	return &Chain{
		provider: provider,
		config:   config,
		log:      log,
		metrics:  m,
	}
}

// IsEnabled returns true if a provider is configured
func (c *Chain) IsEnabled() bool {
	return c.provider != nil
}

// ProviderName returns the name of the configured provider, or empty string if disabled
func (c *Chain) ProviderName() string {
	if c.provider == nil {
		return ""
	}
	return c.provider.Name()
}

// Models returns the priority list
func (c *Chain) Models() []string {
	return append([]string(nil), c.config.Models...)
}

// Complete tries each configured model in order and returns the first output
// of at least minOutputLength characters. Each attempt gets its own timeout and
// failed attempts are followed by RetryDelay.
func (c *Chain) Complete(ctx context.Context, prompt string) (string, error) {
	if c.provider == nil {
		return "", ErrNoProvider
	}
	if len(c.config.Models) == 0 {
		return "", fmt.Errorf("%w: model list is empty", ErrAllModelsFailed)
	}

	var lastErr error
	for i, modelName := range c.config.Models {
		if i > 0 {
			if err := pause(ctx, c.config.RetryDelay); err != nil {
				return "", fmt.Errorf("%w: %v", ErrAllModelsFailed, err)
			}
		}

		text, err := c.attempt(ctx, modelName, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return "", fmt.Errorf("%w: %v", ErrAllModelsFailed, lastErr)
}

func (c *Chain) attempt(ctx context.Context, modelName, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.attemptTimeout())
	defer cancel()

	c.log.Debug("trying model", "model", modelName)

	resp, err := c.provider.Complete(attemptCtx, CompletionRequest{
		Prompt:      prompt,
		Model:       modelName,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		TopP:        c.config.TopP,
	})
	if err != nil {
		c.log.Warn("model failed", "model", modelName, "error", err)
		c.metrics.ModelAttempt(modelName, metrics.AttemptError)
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	if len(text) < minOutputLength {
		c.log.Warn("model returned short output", "model", modelName, "length", len(text))
		c.metrics.ModelAttempt(modelName, metrics.AttemptShort)
		return "", fmt.Errorf("model %s returned %d characters", modelName, len(text))
	}

	c.log.Info("model succeeded", "model", modelName, "tokens", resp.TokensUsed)
	c.metrics.ModelAttempt(modelName, metrics.AttemptSuccess)
	return text, nil
}

// pause waits for d or until ctx is done
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
