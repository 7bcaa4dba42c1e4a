// Package session runs timed exercise sessions: it owns the countdown,
// accepts answers while the session is active and grades exactly once.
package session

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/abhisek/lingua/internal/clock"
	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/grading"
)

// Session is a point-in-time copy of a session. Result, once set, is shared
// and must not be modified.
type Session struct {
	ID            string                 `json:"id"`
	ExerciseID    string                 `json:"exercise_id"`
	Owner         string                 `json:"owner"`
	Kind          exercise.Kind          `json:"kind"`
	State         State                  `json:"state"`
	StartedAt     time.Time              `json:"started_at"`
	Deadline      time.Time              `json:"deadline"`
	FinishedAt    time.Time              `json:"finished_at,omitzero"`
	QuestionCount int                    `json:"question_count"`
	Answers       map[int]grading.Answer `json:"answers"`
	Result        *grading.Result        `json:"result,omitempty"`
}

// Remaining is the time left before the deadline at now, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	return max(s.Deadline.Sub(now), 0)
}

// Record is what a ResultSink receives when a session is graded.
type Record struct {
	SessionID  string
	ExerciseID string
	Owner      string
	Kind       exercise.Kind
	State      State
	StartedAt  time.Time
	FinishedAt time.Time
	Result     *grading.Result
}

// entry is the controller's mutable session, guarded by mu.
type entry struct {
	mu    sync.Mutex
	s     Session
	ex    *exercise.Exercise
	timer clock.Timer
}

func (e *entry) snapshot() *Session {
	c := e.s
	c.Answers = maps.Clone(e.s.Answers)
	return &c
}

func (e *entry) record() *Record {
	return &Record{
		SessionID:  e.s.ID,
		ExerciseID: e.s.ExerciseID,
		Owner:      e.s.Owner,
		Kind:       e.s.Kind,
		State:      e.s.State,
		StartedAt:  e.s.StartedAt,
		FinishedAt: e.s.FinishedAt,
		Result:     e.s.Result,
	}
}

func (e *entry) transition(to State) error {
	from := e.s.State
	if from.Terminal() {
		return ErrSessionClosed
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, from, to)
	}
	e.s.State = to
	return nil
}

func (e *entry) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
	}
}

func cloneAnswer(a grading.Answer) grading.Answer {
	if a.Choice != nil {
		v := *a.Choice
		a.Choice = &v
	}
	if a.Analysis != nil {
		v := *a.Analysis
		a.Analysis = &v
	}
	return a
}
