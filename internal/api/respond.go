package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/gateway"
	"github.com/abhisek/lingua/internal/llm"
	"github.com/abhisek/lingua/internal/session"
)

const maxBodyBytes = 1 << 20

// errAnswerTooShort rejects translation answers below the word minimum.
var errAnswerTooShort = errors.New("answer too short")

type errorBody struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Code: "bad_request", Message: msg}})
}

// writeError maps err onto a status code. It is the only place that knows
// the mapping.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if body.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
	}
	if status >= 500 {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func classify(err error) (int, errorBody) {
	var (
		rl        *llm.ErrRateLimit
		timeout   *llm.ErrTimeout
		maxTokens *llm.ErrMaxTokensExceeded
		invalid   *llm.ErrInvalidResponse
		down      *llm.ErrProviderUnavailable
	)
	switch {
	case errors.As(err, &rl):
		secs := max(int(math.Ceil(rl.RetryAfter.Seconds())), 1)
		return http.StatusTooManyRequests, errorBody{Code: "rate_limited", Message: exercise.UserMessage(err), RetryAfterSeconds: secs}
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout, errorBody{Code: "timeout", Message: exercise.UserMessage(err)}
	case errors.Is(err, exercise.ErrInvalidGeneratedContent), errors.As(err, &maxTokens), errors.As(err, &invalid):
		return http.StatusBadGateway, errorBody{Code: "invalid_generated_content", Message: exercise.UserMessage(err)}
	case errors.As(err, &down):
		return http.StatusServiceUnavailable, errorBody{Code: "provider_unavailable", Message: "The exercise service is unavailable. Please try again later."}
	case errors.Is(err, exercise.ErrInvalidParams), errors.Is(err, llm.ErrUnknownModel), errors.Is(err, gateway.ErrModelUnavailable):
		return http.StatusBadRequest, errorBody{Code: "invalid_request", Message: err.Error()}
	case errors.Is(err, session.ErrInvalidQuestion):
		return http.StatusBadRequest, errorBody{Code: "invalid_question", Message: err.Error()}
	case errors.Is(err, errAnswerTooShort):
		return http.StatusUnprocessableEntity, errorBody{Code: "answer_too_short", Message: err.Error()}
	case errors.Is(err, exercise.ErrNotFound), errors.Is(err, session.ErrExerciseNotFound):
		return http.StatusNotFound, errorBody{Code: "exercise_expired", Message: exercise.UserMessage(exercise.ErrNotFound)}
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, errorBody{Code: "session_not_found", Message: err.Error()}
	case errors.Is(err, session.ErrDeadlinePassed):
		return http.StatusConflict, errorBody{Code: "deadline_passed", Message: err.Error()}
	case errors.Is(err, session.ErrSessionClosed), errors.Is(err, session.ErrInvalidStateTransition):
		return http.StatusConflict, errorBody{Code: "session_closed", Message: err.Error()}
	}
	return http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal error"}
}
