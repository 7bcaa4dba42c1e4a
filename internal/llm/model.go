package llm

import (
	"errors"
	"fmt"
	"sort"
)

// Model is the closed set of models a caller may request.
type Model string

const (
	ModelClaudeHaiku  Model = "claude-haiku"
	ModelClaudeSonnet Model = "claude-sonnet"
	ModelGPT4oMini    Model = "gpt-4o-mini"
	ModelGPT4o        Model = "gpt-4o"
	ModelGeminiFlash  Model = "gemini-flash"
	ModelGeminiPro    Model = "gemini-pro"
	ModelOpenRouter   Model = "openrouter"
	ModelMock         Model = "mock"
)

// Backend names.
const (
	BackendAnthropic  = "anthropic"
	BackendOpenAI     = "openai"
	BackendGemini     = "gemini"
	BackendOpenRouter = "openrouter"
	BackendMock       = "mock"
)

// ErrUnknownModel is returned for model names outside the closed set.
var ErrUnknownModel = errors.New("unknown model")

var modelBackends = map[Model]string{
	ModelClaudeHaiku:  BackendAnthropic,
	ModelClaudeSonnet: BackendAnthropic,
	ModelGPT4oMini:    BackendOpenAI,
	ModelGPT4o:        BackendOpenAI,
	ModelGeminiFlash:  BackendGemini,
	ModelGeminiPro:    BackendGemini,
	ModelOpenRouter:   BackendOpenRouter,
	ModelMock:         BackendMock,
}

// ParseModel maps a user supplied name onto the closed model set.
func ParseModel(s string) (Model, error) {
	m := Model(s)
	if _, ok := modelBackends[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, s)
	}
	return m, nil
}

// Backend reports which provider SDK serves the model.
func (m Model) Backend() string {
	return modelBackends[m]
}

// Models returns every known model, sorted by name.
func Models() []Model {
	out := make([]Model, 0, len(modelBackends))
	for m := range modelBackends {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
