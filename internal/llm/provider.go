package llm

import (
	"context"
	"time"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a single prompt to one model and returns its text output
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest contains the input for one model attempt
type CompletionRequest struct {
	// Prompt is sent as the single user message
	Prompt string

	// System is an optional system instruction
	System string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Sampling parameters
	Temperature float32
	TopP        float32
}

// CompletionResponse contains the model output
type CompletionResponse struct {
	// Text is the raw generated text
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Models in priority order; each is attempted once per completion
	Models []string

	// APIKey for OpenAI-compatible gateways and Anthropic
	APIKey string

	// BaseURL for custom endpoints (OpenRouter, Ollama)
	BaseURL string

	// Timeout for a single model attempt
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	Temperature float32
	TopP        float32

	// RetryDelay is the pause between failed attempts
	RetryDelay time.Duration

	// Referer and Title are sent as HTTP-Referer and X-Title (OpenRouter attribution)
	Referer string
	Title   string

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "", // Disabled by default
		Timeout:     30,
		MaxTokens:   800,
		Temperature: 0.2,
		TopP:        0.9,
		RetryDelay:  2 * time.Second,
		Referer:     "https://github.com/ppiankov/chainbreaker",
		Title:       "ChainBreaker-AI",
	}
}

// attemptTimeout returns the per-attempt deadline
func (c Config) attemptTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}
