package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NewProviders builds one Provider per model whose backend has credentials.
// Each provider is wrapped as caller → retry → logging → base; the retry
// layer is only added when cfg.Retry.MaxAttempts > 1.
func NewProviders(ctx context.Context, cfg Config, recorder EventRecorder, log *zap.Logger) (map[Model]Provider, error) {
	configured := make(map[string]bool)
	for _, b := range cfg.Backends() {
		configured[b] = true
	}

	out := make(map[Model]Provider)
	for _, m := range Models() {
		if !configured[m.Backend()] {
			continue
		}
		base, err := newBaseProvider(ctx, m, cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing %s: %w", m, err)
		}
		p := WithLogging(base, m.Backend(), recorder, log)
		if cfg.Retry.MaxAttempts > 1 {
			p = WithRetry(p, cfg.Retry)
		}
		out[m] = p
	}
	return out, nil
}

func newBaseProvider(ctx context.Context, m Model, cfg Config) (Provider, error) {
	switch m.Backend() {
	case BackendAnthropic:
		c := cfg.Anthropic
		c.Model = string(m)
		return NewAnthropicProvider(c)
	case BackendOpenAI:
		c := cfg.OpenAI
		c.Model = string(m)
		return NewOpenAIProvider(c)
	case BackendGemini:
		c := cfg.Gemini
		c.Model = string(m)
		return NewGeminiProvider(ctx, c)
	case BackendOpenRouter:
		return NewOpenRouterProvider(cfg.OpenRouter)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, m)
}
