// Package gateway turns exercise requests into provider calls. It owns the
// model lookup table, the per-call timeout and error classification; it never
// retries on its own.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/llm"
)

// ErrModelUnavailable is returned for a known model whose backend has no
// credentials configured.
var ErrModelUnavailable = errors.New("model not configured")

// Config controls every gateway call.
type Config struct {
	Timeout           time.Duration
	DefaultModel      llm.Model
	DefaultRetryAfter time.Duration
	MaxTokens         int
	Temperature       float64
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		DefaultModel:      llm.ModelClaudeHaiku,
		DefaultRetryAfter: 60 * time.Second,
		MaxTokens:         4096,
		Temperature:       0.7,
	}
}

// Gateway implements exercise.ContentGateway on top of a set of providers.
type Gateway struct {
	providers map[llm.Model]llm.Provider
	config    Config
	log       *zap.Logger
}

var _ exercise.ContentGateway = (*Gateway)(nil)

// New creates a Gateway. Zero config fields fall back to DefaultConfig.
func New(providers map[llm.Model]llm.Provider, cfg Config, log *zap.Logger) *Gateway {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = def.DefaultModel
	}
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = def.DefaultRetryAfter
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{providers: providers, config: cfg, log: log}
}

// Models lists the models with a configured provider.
func (g *Gateway) Models() []llm.Model {
	var out []llm.Model
	for _, m := range llm.Models() {
		if _, ok := g.providers[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Generate asks model for the raw content of one exercise of kind.
func (g *Gateway) Generate(ctx context.Context, kind exercise.Kind, params exercise.Params, model llm.Model) (*exercise.RawContent, error) {
	p, model, err := g.provider(model)
	if err != nil {
		return nil, err
	}

	req := llm.Request{
		System:      systemPrompt(kind),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildUserMessage(kind, params)}},
		Schema:      schemaFor(kind),
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	}

	resp, err := g.call(llm.WithPurpose(ctx, "exercise-"+string(kind)), p, req)
	if err != nil {
		g.log.Warn("exercise generation failed",
			zap.String("kind", string(kind)),
			zap.String("model", string(model)),
			zap.Error(err))
		return nil, err
	}

	name := resp.Model
	if name == "" {
		name = string(model)
	}
	return &exercise.RawContent{Content: resp.Content, Model: name}, nil
}

func (g *Gateway) provider(model llm.Model) (llm.Provider, llm.Model, error) {
	if model == "" {
		model = g.config.DefaultModel
	}
	if _, err := llm.ParseModel(string(model)); err != nil {
		return nil, model, err
	}
	p, ok := g.providers[model]
	if !ok {
		return nil, model, fmt.Errorf("%w: %s", ErrModelUnavailable, model)
	}
	return p, model, nil
}

// call runs one request under the configured timeout and normalizes the
// error so callers only ever see the llm error types.
func (g *Gateway) call(ctx context.Context, p llm.Provider, req llm.Request) (*llm.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	resp, err := p.Generate(ctx, req)
	if err == nil {
		return resp, nil
	}

	var rl *llm.ErrRateLimit
	if errors.As(err, &rl) {
		if rl.RetryAfter <= 0 {
			return nil, &llm.ErrRateLimit{RetryAfter: g.config.DefaultRetryAfter, Err: rl.Err}
		}
		return nil, err
	}

	var to *llm.ErrTimeout
	if errors.As(err, &to) {
		if to.After == 0 {
			return nil, &llm.ErrTimeout{After: g.config.Timeout, Err: to.Err}
		}
		return nil, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, &llm.ErrTimeout{After: g.config.Timeout, Err: err}
	}
	return nil, err
}
