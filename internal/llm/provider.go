package llm

import (
	"context"
	"encoding/json"
)

// Provider is the content-provider capability every model backend implements.
// The gateway holds one Provider per Model and never branches on the backend.
type Provider interface {
	// Generate sends one prompt and returns the model output. When the
	// request carries a Schema the returned Content has already been
	// validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the backend model identifier, e.g. "gpt-4o-mini".
	ModelID() string
}

// Request describes a single generation call.
type Request struct {
	System string

	// Messages holds the conversation. Exercise generation and speech
	// analysis are single-turn, so this is usually one user message.
	Messages []Message

	// Schema, when set, asks the backend for structured JSON output.
	Schema *Schema

	MaxTokens int

	// Temperature in [0, 1]. Zero leaves the backend default.
	Temperature float64
}

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a named JSON Schema definition.
type Schema struct {
	// Name is kebab-case, e.g. "listening-exercise". It doubles as the
	// compiled-schema cache key.
	Name        string
	Description string
	Definition  map[string]any
}

// Response is the model output.
type Response struct {
	Content json.RawMessage
	Usage   Usage

	// Model is the model that actually served the request.
	Model string

	// StopReason is normalized to "end" or "max_tokens".
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
