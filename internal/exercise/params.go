package exercise

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	MinQuestions = 3
	MaxQuestions = 20

	// MaxCustomPromptLen caps the free-form instructions a caller may add.
	MaxCustomPromptLen = 2000
)

// Levels are the CEFR levels accepted in Params.Level.
var Levels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

// Params describe what to generate.
type Params struct {
	Topic         string `json:"topic"`
	Level         string `json:"level,omitempty"`
	QuestionCount int    `json:"question_count"`
	CustomPrompt  string `json:"custom_prompt,omitempty"`
}

// Validate reports the first problem with p, wrapped in ErrInvalidParams.
func (p Params) Validate() error {
	if strings.TrimSpace(p.Topic) == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidParams)
	}
	if p.QuestionCount < MinQuestions || p.QuestionCount > MaxQuestions {
		return fmt.Errorf("%w: question count %d outside [%d, %d]", ErrInvalidParams, p.QuestionCount, MinQuestions, MaxQuestions)
	}
	if p.Level != "" && !slices.Contains(Levels, p.Level) {
		return fmt.Errorf("%w: unknown level %q", ErrInvalidParams, p.Level)
	}
	if utf8.RuneCountInString(p.CustomPrompt) > MaxCustomPromptLen {
		return fmt.Errorf("%w: custom prompt longer than %d characters", ErrInvalidParams, MaxCustomPromptLen)
	}
	return nil
}
