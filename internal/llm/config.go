package llm

import (
	"fmt"
	"os"
	"time"
)

// Config holds the credentials and tuning for every backend. Unlike a
// single-provider setup, each backend with a key registers its models.
type Config struct {
	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Retry      RetryConfig

	// DefaultModel serves requests that do not name a model.
	DefaultModel Model

	// Timeout bounds a single provider call. Default: 30s.
	Timeout time.Duration

	// RateLimitRetryAfter is reported when a 429 carries no Retry-After.
	RateLimitRetryAfter time.Duration

	MaxTokens int
}

// AnthropicConfig holds Anthropic-specific configuration. Model is filled
// in per registered model by NewProviders.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // Default: "google/gemini-2.5-flash"
	BaseURL string // Default: "https://openrouter.ai/api/v1"
}

// RetryConfig configures the opt-in retry decorator.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults. Retries are off.
func DefaultConfig() Config {
	return Config{
		OpenRouter: OpenRouterConfig{
			Model: "google/gemini-2.5-flash",
		},
		Retry: RetryConfig{
			MaxAttempts: 1,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		DefaultModel:        ModelClaudeHaiku,
		Timeout:             30 * time.Second,
		RateLimitRetryAfter: 60 * time.Second,
		MaxTokens:           4096,
	}
}

// ConfigFromEnv builds a Config from LINGUA_* variables, falling back to
// the provider's conventional variable names for API keys.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.Anthropic.APIKey = firstEnv("LINGUA_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	cfg.OpenAI.APIKey = firstEnv("LINGUA_OPENAI_API_KEY", "OPENAI_API_KEY")
	cfg.Gemini.APIKey = firstEnv("LINGUA_GEMINI_API_KEY", "GEMINI_API_KEY")
	cfg.OpenRouter.APIKey = firstEnv("LINGUA_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")

	if u := os.Getenv("LINGUA_OPENAI_BASE_URL"); u != "" {
		cfg.OpenAI.BaseURL = u
	}
	if m := os.Getenv("LINGUA_OPENROUTER_MODEL"); m != "" {
		cfg.OpenRouter.Model = m
	}
	if m := os.Getenv("LINGUA_DEFAULT_MODEL"); m != "" {
		cfg.DefaultModel = Model(m)
	}

	return cfg
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Backends lists the backends that have credentials configured.
func (c Config) Backends() []string {
	var out []string
	if c.Anthropic.APIKey != "" {
		out = append(out, BackendAnthropic)
	}
	if c.OpenAI.APIKey != "" {
		out = append(out, BackendOpenAI)
	}
	if c.Gemini.APIKey != "" {
		out = append(out, BackendGemini)
	}
	if c.OpenRouter.APIKey != "" {
		out = append(out, BackendOpenRouter)
	}
	return out
}

// Validate checks that at least one backend is usable and that the default
// model is served by one of them.
func (c Config) Validate() error {
	backends := c.Backends()
	if len(backends) == 0 {
		return fmt.Errorf("no LLM credentials configured; set one of LINGUA_ANTHROPIC_API_KEY, LINGUA_OPENAI_API_KEY, LINGUA_GEMINI_API_KEY, LINGUA_OPENROUTER_API_KEY")
	}
	if _, err := ParseModel(string(c.DefaultModel)); err != nil {
		return fmt.Errorf("default model: %w", err)
	}
	for _, b := range backends {
		if b == c.DefaultModel.Backend() {
			return nil
		}
	}
	return fmt.Errorf("default model %q needs %s credentials", c.DefaultModel, c.DefaultModel.Backend())
}
