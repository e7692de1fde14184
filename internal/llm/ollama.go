package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	ollamaBaseURL = "http://localhost:11434"

	// Local models load slowly on first use
	ollamaTimeout = 60 * time.Second
)

// OllamaProvider calls a local Ollama daemon's generate endpoint
type OllamaProvider struct {
	endpoint *jsonEndpoint
	config   Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// NewOllamaProvider needs no key. An OpenRouter base URL left over from the
// defaults is replaced with the local daemon address.
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" || strings.Contains(baseURL, "openrouter.ai") {
		baseURL = ollamaBaseURL
	}

	return &OllamaProvider{
		endpoint: &jsonEndpoint{
			provider: "ollama",
			url:      strings.TrimSuffix(baseURL, "/") + "/api/generate",
			client:   newHTTPClient(config, ollamaTimeout),
			errorMessage: func(body []byte) string {
				var e struct {
					Error string `json:"error"`
				}
				_ = json.Unmarshal(body, &e)
				return e.Error
			},
		},
		config: config,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Complete runs one non-streaming generation
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g. llama3.1:8b)")
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	var resp ollamaResponse
	err := p.endpoint.post(ctx, ollamaRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.System,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  maxTokens,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Done {
		return nil, fmt.Errorf("ollama returned an incomplete generation for model %s", req.Model)
	}

	return &CompletionResponse{
		Text:       strings.TrimSpace(resp.Response),
		Model:      resp.Model,
		TokensUsed: resp.PromptEvalCount + resp.EvalCount,
	}, nil
}
