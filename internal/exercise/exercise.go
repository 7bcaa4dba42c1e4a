// Package exercise defines generated exercises and the orchestrator that
// requests, validates and stores them.
package exercise

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abhisek/lingua/internal/llm"
)

// Kind is the closed set of exercise kinds.
type Kind string

const (
	KindListening           Kind = "listening"
	KindSpeaking            Kind = "speaking"
	KindSentenceTranslation Kind = "sentence_translation"
	KindMultipleChoiceSet   Kind = "multiple_choice_set"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindListening, KindSpeaking, KindSentenceTranslation, KindMultipleChoiceSet}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidParams, s)
}

// QuestionType tells the grader how to evaluate a question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionFreeText       QuestionType = "free_text"
	QuestionSpoken         QuestionType = "spoken"
)

// QuestionTypeFor returns the question type every question of kind k uses.
func QuestionTypeFor(k Kind) QuestionType {
	switch k {
	case KindSentenceTranslation:
		return QuestionFreeText
	case KindSpeaking:
		return QuestionSpoken
	default:
		return QuestionMultipleChoice
	}
}

// PromptPayload is the kind-specific material shown before the questions.
type PromptPayload struct {
	Title           string   `json:"title"`
	Instructions    string   `json:"instructions,omitempty"`
	Transcript      string   `json:"transcript,omitempty"`
	AudioRef        string   `json:"audio_ref,omitempty"`
	SpeakingPrompt  string   `json:"speaking_prompt,omitempty"`
	SourceSentences []string `json:"source_sentences,omitempty"`
}

// Question is one gradable item. CorrectIndex is -1 when absent.
type Question struct {
	Type            QuestionType `json:"type"`
	Text            string       `json:"text"`
	Options         []string     `json:"options,omitempty"`
	CorrectIndex    int          `json:"correct_index"`
	CanonicalAnswer string       `json:"canonical_answer,omitempty"`
	Explanation     string       `json:"explanation,omitempty"`
}

// Exercise is a generated exercise. Everything except Graded is fixed once
// the store has accepted it.
type Exercise struct {
	ID            string        `json:"id"`
	Owner         string        `json:"owner"`
	Kind          Kind          `json:"kind"`
	Level         string        `json:"level,omitempty"`
	Topic         string        `json:"topic"`
	Prompt        PromptPayload `json:"prompt"`
	Questions     []Question    `json:"questions"`
	CreatedAt     time.Time     `json:"created_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	ProviderModel string        `json:"provider_model"`
	Graded        bool          `json:"graded"`
}

// Expired reports whether the exercise is past its expiry at now.
func (e *Exercise) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Clone returns a deep copy.
func (e *Exercise) Clone() *Exercise {
	c := *e
	c.Prompt.SourceSentences = append([]string(nil), e.Prompt.SourceSentences...)
	c.Questions = make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		q.Options = append([]string(nil), q.Options...)
		c.Questions[i] = q
	}
	return &c
}

// Store holds exercises until they expire. Implementations live in exstore.
type Store interface {
	// Put assigns ex.ID when empty, stamps CreatedAt and ExpiresAt on ex
	// and stores a copy.
	Put(ctx context.Context, ex *Exercise) (string, error)

	// Get returns a copy of the exercise. found is false once the
	// exercise has expired, whether or not it has been swept.
	Get(ctx context.Context, id string) (ex *Exercise, found bool, err error)

	// MarkGraded sets the Graded marker. ErrNotFound if expired or unknown.
	MarkGraded(ctx context.Context, id string) error

	// ListRecent returns live exercises of owner, newest first.
	ListRecent(ctx context.Context, owner string, limit int) ([]*Exercise, error)

	// Sweep drops expired entries and reports how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// RawContent is the provider output for one generation request.
type RawContent struct {
	Content json.RawMessage
	Model   string
}

// ContentGateway produces raw exercise content for a kind.
type ContentGateway interface {
	Generate(ctx context.Context, kind Kind, params Params, model llm.Model) (*RawContent, error)
}
