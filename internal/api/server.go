// Package api exposes exercise generation and timed sessions over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/gateway"
	"github.com/abhisek/lingua/internal/grading"
	"github.com/abhisek/lingua/internal/llm"
	"github.com/abhisek/lingua/internal/logging"
	"github.com/abhisek/lingua/internal/session"
)

// Exercises generates and looks up exercises.
type Exercises interface {
	GenerateExercise(ctx context.Context, owner string, kind exercise.Kind, params exercise.Params, model llm.Model) (*exercise.Handle, error)
	Lookup(ctx context.Context, id string) (*exercise.Handle, error)
	ListRecent(ctx context.Context, owner string, limit int) ([]exercise.Summary, error)
}

// Sessions runs timed sessions.
type Sessions interface {
	Start(ctx context.Context, owner, exerciseID string, duration time.Duration) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Exercise(ctx context.Context, id string) (*exercise.Exercise, error)
	RecordAnswer(ctx context.Context, id string, index int, ans grading.Answer) error
	Submit(ctx context.Context, id string, answers map[int]grading.Answer) (*grading.Result, error)
	Cancel(ctx context.Context, id string) error
}

// SpeechAnalyzer scores transcribed spoken answers.
type SpeechAnalyzer interface {
	AnalyzeSpeech(ctx context.Context, in gateway.SpeechInput, model llm.Model) (grading.AxisScores, error)
}

// Server holds the HTTP handlers.
type Server struct {
	exercises Exercises
	sessions  Sessions
	speech    SpeechAnalyzer
	clock     func() time.Time
	log       *zap.Logger
}

// New creates a Server. log may be nil.
func New(ex Exercises, sessions Sessions, speech SpeechAnalyzer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{exercises: ex, sessions: sessions, speech: speech, clock: time.Now, log: log}
}

// Handler returns the routed handler with the standard middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/exercises", func(r chi.Router) {
			r.Post("/", s.handleGenerate)
			r.Get("/", s.handleListExercises)
			r.Get("/{exerciseID}", s.handleGetExercise)
		})
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleStartSession)
			r.Get("/{sessionID}", s.handleGetSession)
			r.Put("/{sessionID}/answers/{index}", s.handleRecordAnswer)
			r.Post("/{sessionID}/submit", s.handleSubmit)
			r.Post("/{sessionID}/cancel", s.handleCancel)
		})
	})
	return r
}

// NewHTTPServer wraps the handler in an http.Server listening on addr.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
