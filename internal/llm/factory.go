package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/chainbreaker/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai", "openrouter":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		// No provider configured - return nil (LLM disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, openrouter, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	config := DefaultConfig()
	config.Provider = modelConfig.Provider
	config.Models = append([]string(nil), modelConfig.Models...)
	config.APIKey = modelConfig.APIKey
	config.BaseURL = modelConfig.BaseURL
	config.HTTPProxy = modelConfig.HTTPProxy
	config.HTTPSProxy = modelConfig.HTTPSProxy
	config.NoProxy = modelConfig.NoProxy
	config.RetryDelay = modelConfig.RetryDelay

	if modelConfig.Timeout > 0 {
		config.Timeout = modelConfig.Timeout
	}
	if modelConfig.MaxTokens > 0 {
		config.MaxTokens = modelConfig.MaxTokens
	}
	if modelConfig.Temperature > 0 {
		config.Temperature = modelConfig.Temperature
	}
	if modelConfig.TopP > 0 {
		config.TopP = modelConfig.TopP
	}

	return config
}
