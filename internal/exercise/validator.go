package exercise

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validator checks a parsed exercise before it is stored.
// Implementations are stateless and safe for concurrent use.
type Validator interface {
	// Name is a short identifier, e.g. "structural".
	Name() string

	// Validate returns nil if ex passes.
	Validate(ex *Exercise, params Params) *ValidationError
}

// ValidationError describes why an exercise failed validation.
type ValidationError struct {
	Validator string
	Message   string
	Retryable bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

const (
	maxQuestionLen    = 500
	maxExplanationLen = 1000
	minOptions        = 2
	maxOptions        = 6
)

// StructuralValidator checks that the kind-specific payload is present and
// that every question has text of the right type for the kind.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(ex *Exercise, _ Params) *ValidationError {
	fail := func(format string, args ...any) *ValidationError {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf(format, args...), Retryable: true}
	}

	if strings.TrimSpace(ex.Prompt.Title) == "" {
		return fail("title is empty")
	}
	switch ex.Kind {
	case KindListening:
		if strings.TrimSpace(ex.Prompt.Transcript) == "" {
			return fail("listening exercise has no transcript")
		}
	case KindSpeaking:
		if strings.TrimSpace(ex.Prompt.SpeakingPrompt) == "" {
			return fail("speaking exercise has no speaking prompt")
		}
	}

	want := QuestionTypeFor(ex.Kind)
	for i, q := range ex.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return fail("question %d has no text", i)
		}
		if utf8.RuneCountInString(q.Text) > maxQuestionLen {
			return fail("question %d exceeds %d characters", i, maxQuestionLen)
		}
		if utf8.RuneCountInString(q.Explanation) > maxExplanationLen {
			return fail("explanation %d exceeds %d characters", i, maxExplanationLen)
		}
		if q.Type != want {
			return fail("question %d has type %q, %s exercises use %q", i, q.Type, ex.Kind, want)
		}
	}
	return nil
}

// QuestionCountValidator checks that the provider honoured the requested count.
type QuestionCountValidator struct{}

func (v *QuestionCountValidator) Name() string { return "question-count" }

func (v *QuestionCountValidator) Validate(ex *Exercise, params Params) *ValidationError {
	if len(ex.Questions) != params.QuestionCount {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("got %d questions, requested %d", len(ex.Questions), params.QuestionCount),
			Retryable: true,
		}
	}
	return nil
}

// AnswerKeyValidator checks that every question can be graded: choices have
// an in-range correct index and free-text items have a canonical answer.
type AnswerKeyValidator struct{}

func (v *AnswerKeyValidator) Name() string { return "answer-key" }

func (v *AnswerKeyValidator) Validate(ex *Exercise, _ Params) *ValidationError {
	fail := func(format string, args ...any) *ValidationError {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf(format, args...), Retryable: true}
	}

	for i, q := range ex.Questions {
		switch q.Type {
		case QuestionMultipleChoice:
			if len(q.Options) < minOptions || len(q.Options) > maxOptions {
				return fail("question %d has %d options, want %d-%d", i, len(q.Options), minOptions, maxOptions)
			}
			seen := make(map[string]bool, len(q.Options))
			for j, o := range q.Options {
				o = strings.TrimSpace(o)
				if o == "" {
					return fail("question %d option %d is empty", i, j)
				}
				if seen[o] {
					return fail("question %d repeats option %q", i, o)
				}
				seen[o] = true
			}
			if q.CorrectIndex < 0 {
				return fail("question %d has no correct index", i)
			}
			if q.CorrectIndex >= len(q.Options) {
				return fail("question %d correct index %d out of range", i, q.CorrectIndex)
			}
		case QuestionFreeText:
			if blankAnswer(q.CanonicalAnswer) {
				return fail("question %d has no canonical answer", i)
			}
		}
	}
	return nil
}

// blankAnswer reports whether s is empty under the grader's normalization:
// Unicode whitespace collapsed and trailing periods dropped.
func blankAnswer(s string) bool {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(strings.TrimRight(s, ".")) == ""
}
