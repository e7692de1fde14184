package model

import "time"

// Config is the complete chainbreaker configuration
type Config struct {
	Server       ServerConfig      `yaml:"server" mapstructure:"server"`
	Database     DatabaseConfig    `yaml:"database" mapstructure:"database"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Sources      SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Telegram     TelegramConfig    `yaml:"telegram" mapstructure:"telegram"`
	Log          LogConfig         `yaml:"log" mapstructure:"log"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr           string `yaml:"addr" mapstructure:"addr"`
	Mode           string `yaml:"mode" mapstructure:"mode"`                       // gin mode: debug, release, test
	DashboardLimit int    `yaml:"dashboard_limit" mapstructure:"dashboard_limit"` // Max rows per table on /api/dashboard
}

// DatabaseConfig selects the storage backend
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // postgres, sqlite
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// LLMConfig configures the model provider and its priority-ordered model list
type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Models      []string      `yaml:"models" mapstructure:"models"`     // Tried in order, once each
	APIKey      string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int           `yaml:"timeout" mapstructure:"timeout"` // seconds per attempt
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	TopP        float32       `yaml:"top_p" mapstructure:"top_p"`
	RetryDelay  time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"` // Pause between model attempts
	HTTPProxy   string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy  string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy     string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// SourcesConfig configures the evidence providers
type SourcesConfig struct {
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout"` // Per lookup
	UserAgent       string        `yaml:"user_agent" mapstructure:"user_agent"`
	FactCheckAPIKey string        `yaml:"fact_check_api_key,omitempty" mapstructure:"fact_check_api_key"`
	NewsAPIKey      string        `yaml:"news_api_key,omitempty" mapstructure:"news_api_key"`
	FactCheckURL    string        `yaml:"fact_check_url" mapstructure:"fact_check_url"`
	WikipediaURL    string        `yaml:"wikipedia_url" mapstructure:"wikipedia_url"`
	DuckDuckGoURL   string        `yaml:"duckduckgo_url" mapstructure:"duckduckgo_url"`
	NewsURL         string        `yaml:"news_url" mapstructure:"news_url"`
	HTTPProxy       string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy      string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig controls the evidence response cache
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxItems      int           `yaml:"max_items" mapstructure:"max_items"`             // In-process entries; 0 is unbounded
	RedisAddr     string        `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"` // Empty: memory only
	RedisPassword string        `yaml:"redis_password,omitempty" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
}

// RateLimitConfig throttles outbound evidence requests per host
type RateLimitConfig struct {
	RequestsPerSecond float64          `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int              `yaml:"burst_size" mapstructure:"burst_size"`
	Hosts             []HostRateConfig `yaml:"hosts,omitempty" mapstructure:"hosts"` // Per-host overrides for quota-limited APIs
}

// HostRateConfig overrides the request rate for one host
type HostRateConfig struct {
	Host              string  `yaml:"host" mapstructure:"host"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size,omitempty" mapstructure:"burst_size"`
}

// ConcurrencyConfig controls batch checking
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// TelegramConfig configures the bot and the broadcast sender
type TelegramConfig struct {
	Token       string        `yaml:"token,omitempty" mapstructure:"token"`
	BotUsername string        `yaml:"bot_username,omitempty" mapstructure:"bot_username"`
	SendTimeout time.Duration `yaml:"send_timeout" mapstructure:"send_timeout"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"` // development, production
}

// DefaultModels is the model priority list used with OpenRouter
var DefaultModels = []string{
	"anthropic/claude-3.5-sonnet",
	"openai/gpt-4o-mini",
	"google/gemini-flash-1.5",
	"qwen/qwen3-4b:free",
	"mistralai/mistral-small-3.1-24b:free",
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	models := make([]string, len(DefaultModels))
	copy(models, DefaultModels)

	return &Config{
		Server: ServerConfig{
			Addr:           ":5000",
			Mode:           "release",
			DashboardLimit: 100,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "chainbreaker.db",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Models:      models,
			BaseURL:     "https://openrouter.ai/api/v1",
			Timeout:     30,
			MaxTokens:   800,
			Temperature: 0.2,
			TopP:        0.9,
			RetryDelay:  2 * time.Second,
		},
		Sources: SourcesConfig{
			Timeout:       8 * time.Second,
			UserAgent:     "ChainBreaker-AI/1.0",
			FactCheckURL:  "https://factchecktools.googleapis.com/v1alpha1/claims:search",
			WikipediaURL:  "https://en.wikipedia.org",
			DuckDuckGoURL: "https://api.duckduckgo.com/",
			NewsURL:       "https://newsapi.org/v2/everything",
		},
		Cache: CacheConfig{
			Enabled:  true,
			TTL:      10 * time.Minute,
			MaxItems: 10000,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
			Hosts: []HostRateConfig{
				// NewsAPI's free tier allows 100 requests a day
				{Host: "newsapi.org", RequestsPerSecond: 1, BurstSize: 2},
			},
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Telegram: TelegramConfig{
			SendTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Mode: "development",
		},
	}
}
