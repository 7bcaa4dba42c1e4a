package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/gateway"
	"github.com/abhisek/lingua/internal/grading"
	"github.com/abhisek/lingua/internal/llm"
	"github.com/abhisek/lingua/internal/session"
)

// MinTranslationWords is the shortest translation answer accepted.
const MinTranslationWords = 3

type startRequest struct {
	Owner           string `json:"owner"`
	ExerciseID      string `json:"exercise_id"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

type startResponse struct {
	SessionID string    `json:"session_id"`
	Deadline  time.Time `json:"deadline"`
}

type sessionResponse struct {
	*session.Session
	RemainingSeconds int `json:"remaining_seconds"`
}

// answerRequest is one answer. Which field is read depends on the
// question type: choice, text (translation) or transcript (spoken).
type answerRequest struct {
	Index      *int   `json:"index,omitempty"`
	Choice     *int   `json:"choice,omitempty"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Model      string `json:"model,omitempty"`
}

type submitRequest struct {
	Answers []answerRequest `json:"answers"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.Owner == "" || req.ExerciseID == "" {
		writeBadRequest(w, "owner and exercise_id are required")
		return
	}
	if req.DurationSeconds < 0 {
		writeBadRequest(w, "duration_seconds must not be negative")
		return
	}

	sess, err := s.sessions.Start(r.Context(), req.Owner, req.ExerciseID, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{SessionID: sess.ID, Deadline: sess.Deadline})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(sess))
}

func (s *Server) sessionView(sess *session.Session) sessionResponse {
	remaining := 0
	if sess.State == session.StateActive {
		remaining = int(sess.Remaining(s.clock()).Seconds())
	}
	return sessionResponse{Session: sess, RemainingSeconds: remaining}
}

func (s *Server) handleRecordAnswer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeBadRequest(w, "question index must be an integer")
		return
	}
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	ex, err := s.sessions.Exercise(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ans, err := s.toAnswer(r.Context(), ex, index, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.sessions.RecordAnswer(r.Context(), id, index, ans); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	// Answers sent to a finished session are ignored and never analysed.
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var answers map[int]grading.Answer
	if sess.State == session.StateActive && len(req.Answers) > 0 {
		ex, err := s.sessions.Exercise(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		answers = make(map[int]grading.Answer, len(req.Answers))
		for _, a := range req.Answers {
			if a.Index == nil {
				writeBadRequest(w, "every answer needs an index")
				return
			}
			ans, err := s.toAnswer(r.Context(), ex, *a.Index, a)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			answers[*a.Index] = ans
		}
	}

	res, err := s.sessions.Submit(r.Context(), id, answers)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Cancel(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// toAnswer turns a request into a grading answer for question index of ex.
// Translation answers must meet the word minimum; spoken answers are
// analysed before they are recorded.
func (s *Server) toAnswer(ctx context.Context, ex *exercise.Exercise, index int, req answerRequest) (grading.Answer, error) {
	if index < 0 || index >= len(ex.Questions) {
		return grading.Answer{}, fmt.Errorf("%w: %d not in [0, %d)", session.ErrInvalidQuestion, index, len(ex.Questions))
	}
	q := ex.Questions[index]

	switch q.Type {
	case exercise.QuestionMultipleChoice:
		return grading.Answer{Choice: req.Choice}, nil

	case exercise.QuestionFreeText:
		if n := grading.WordCount(req.Text); ex.Kind == exercise.KindSentenceTranslation && n < MinTranslationWords {
			return grading.Answer{}, fmt.Errorf("%w: translation needs at least %d words, got %d", errAnswerTooShort, MinTranslationWords, n)
		}
		return grading.Answer{Text: req.Text}, nil

	case exercise.QuestionSpoken:
		transcript := req.Transcript
		if transcript == "" {
			transcript = req.Text
		}
		if strings.TrimSpace(transcript) == "" {
			return grading.Answer{}, nil
		}
		var model llm.Model
		if req.Model != "" {
			m, err := llm.ParseModel(req.Model)
			if err != nil {
				return grading.Answer{}, err
			}
			model = m
		}
		axes, err := s.speech.AnalyzeSpeech(ctx, gateway.SpeechInput{
			Prompt:     ex.Prompt.SpeakingPrompt,
			Task:       q.Text,
			Transcript: transcript,
			Level:      ex.Level,
		}, model)
		if err != nil {
			return grading.Answer{}, fmt.Errorf("analyse spoken answer %d: %w", index, err)
		}
		return grading.Answer{Text: transcript, Analysis: &axes}, nil
	}
	return grading.Answer{}, fmt.Errorf("%w: unsupported question type %q", session.ErrInvalidQuestion, q.Type)
}
