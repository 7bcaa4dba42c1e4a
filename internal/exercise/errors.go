package exercise

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/abhisek/lingua/internal/llm"
)

var (
	// ErrNotFound means the exercise never existed or has expired.
	ErrNotFound = errors.New("exercise not found or expired")

	ErrInvalidParams = errors.New("invalid generation parameters")

	// ErrInvalidGeneratedContent matches every *InvalidContentError.
	ErrInvalidGeneratedContent = errors.New("invalid generated content")
)

// InvalidContentError reports provider output that could not become an
// exercise. Err is set when the provider itself rejected the output.
type InvalidContentError struct {
	Validator string
	Message   string
	Err       error
}

func (e *InvalidContentError) Error() string {
	if e.Validator != "" {
		return fmt.Sprintf("invalid generated content (%s): %s", e.Validator, e.Message)
	}
	return fmt.Sprintf("invalid generated content: %s", e.Message)
}

func (e *InvalidContentError) Unwrap() error { return e.Err }

func (e *InvalidContentError) Is(target error) bool {
	return target == ErrInvalidGeneratedContent
}

// RetryAfter extracts the provider's retry delay from a rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *llm.ErrRateLimit
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

// UserMessage renders err as a message fit to show a learner.
func UserMessage(err error) string {
	var (
		rl      *llm.ErrRateLimit
		timeout *llm.ErrTimeout
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rl):
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		return fmt.Sprintf("The exercise service is busy. Please try again in %d seconds.", secs)
	case errors.As(err, &timeout):
		return "The exercise service took too long to respond. Please try again."
	case errors.Is(err, ErrInvalidGeneratedContent):
		return "The generated exercise was malformed. Please generate a new one."
	case errors.Is(err, ErrNotFound):
		return "This exercise has expired. Please generate a new one."
	case errors.Is(err, ErrInvalidParams):
		return err.Error()
	case errors.Is(err, llm.ErrUnknownModel):
		return err.Error()
	}
	return "Something went wrong while preparing the exercise. Please try again."
}
