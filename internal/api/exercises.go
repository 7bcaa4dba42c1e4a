package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/llm"
)

type generateRequest struct {
	Owner         string `json:"owner"`
	Kind          string `json:"kind"`
	Model         string `json:"model,omitempty"`
	Topic         string `json:"topic"`
	Level         string `json:"level,omitempty"`
	QuestionCount int    `json:"question_count"`
	CustomPrompt  string `json:"custom_prompt,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Owner) == "" {
		writeBadRequest(w, "owner is required")
		return
	}
	kind, err := exercise.ParseKind(req.Kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var model llm.Model
	if req.Model != "" {
		if model, err = llm.ParseModel(req.Model); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	params := exercise.Params{
		Topic:         req.Topic,
		Level:         strings.ToUpper(req.Level),
		QuestionCount: req.QuestionCount,
		CustomPrompt:  req.CustomPrompt,
	}
	h, err := s.exercises.GenerateExercise(r.Context(), req.Owner, kind, params, model)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeBadRequest(w, "owner query parameter is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	list, err := s.exercises.ListRecent(r.Context(), owner, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []exercise.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exercises": list})
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	h, err := s.exercises.Lookup(r.Context(), chi.URLParam(r, "exerciseID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}
