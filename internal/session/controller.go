package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/lingua/internal/clock"
	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/grading"
)

// ExerciseSource is the part of exercise.Store the controller reads.
type ExerciseSource interface {
	Get(ctx context.Context, id string) (*exercise.Exercise, bool, error)
	MarkGraded(ctx context.Context, id string) error
}

// ResultSink receives every graded or expired session exactly once.
type ResultSink interface {
	RecordResult(ctx context.Context, rec Record) error
}

// Config tunes the controller.
type Config struct {
	// DefaultDuration applies when Start is given a non-positive duration.
	DefaultDuration time.Duration

	// Retention is how long finished sessions stay readable before Tick
	// drops them.
	Retention time.Duration
}

// DefaultConfig returns a 10 minute session with one hour of retention.
func DefaultConfig() Config {
	return Config{
		DefaultDuration: 10 * time.Minute,
		Retention:       time.Hour,
	}
}

// Controller owns every session and its countdown timer. Lock order is
// Controller.mu before entry.mu; entry.mu is never held while taking
// Controller.mu.
type Controller struct {
	exercises ExerciseSource
	clock     clock.Clock
	config    Config
	sink      ResultSink
	log       *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewController creates a Controller. sink and log may be nil.
func NewController(exercises ExerciseSource, clk clock.Clock, cfg Config, sink ResultSink, log *zap.Logger) *Controller {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = DefaultConfig().DefaultDuration
	}
	return &Controller{
		exercises: exercises,
		clock:     clk,
		config:    cfg,
		sink:      sink,
		log:       log,
		sessions:  make(map[string]*entry),
	}
}

// Start opens a session on a live exercise. The deadline is now+duration,
// clamped to the exercise's expiry, and a timer expires the session there.
func (c *Controller) Start(ctx context.Context, owner, exerciseID string, duration time.Duration) (*Session, error) {
	ex, found, err := c.exercises.Get(ctx, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("load exercise %s: %w", exerciseID, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrExerciseNotFound, exerciseID)
	}
	if duration <= 0 {
		duration = c.config.DefaultDuration
	}

	now := c.clock.Now()
	deadline := now.Add(duration)
	if deadline.After(ex.ExpiresAt) {
		deadline = ex.ExpiresAt
	}

	e := &entry{
		ex: ex,
		s: Session{
			ID:            uuid.NewString(),
			ExerciseID:    ex.ID,
			Owner:         owner,
			Kind:          ex.Kind,
			State:         StateActive,
			StartedAt:     now,
			Deadline:      deadline,
			QuestionCount: len(ex.Questions),
			Answers:       make(map[int]grading.Answer),
		},
	}

	// The callback takes e.mu, so it cannot observe e before timer is set.
	e.mu.Lock()
	e.timer = c.clock.AfterFunc(deadline.Sub(now), func() { c.onDeadline(e) })
	snap := e.snapshot()
	e.mu.Unlock()

	c.mu.Lock()
	c.sessions[snap.ID] = e
	c.mu.Unlock()

	c.log.Info("session started",
		zap.String("session_id", snap.ID),
		zap.String("exercise_id", ex.ID),
		zap.String("owner", owner),
		zap.Time("deadline", deadline))
	return snap, nil
}

// Get returns a snapshot. An active session past its deadline is expired
// first, so a reader never sees it active.
func (c *Controller) Get(ctx context.Context, id string) (*Session, error) {
	e, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	c.expire(ctx, e, c.clock.Now())

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// Exercise returns a copy of the exercise the session was started on. It
// stays available after the store has expired the exercise.
func (c *Controller) Exercise(_ context.Context, id string) (*exercise.Exercise, error) {
	e, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ex.Clone(), nil
}

// RecordAnswer stores or replaces the answer to question index.
func (c *Controller) RecordAnswer(ctx context.Context, id string, index int, ans grading.Answer) error {
	e, err := c.lookup(id)
	if err != nil {
		return err
	}
	now := c.clock.Now()

	e.mu.Lock()
	if e.s.State != StateActive {
		state := e.s.State
		e.mu.Unlock()
		if state.Terminal() {
			return fmt.Errorf("%w: session %s is %s", ErrSessionClosed, id, state)
		}
		return fmt.Errorf("%w: cannot answer while %s", ErrInvalidStateTransition, state)
	}
	if !now.Before(e.s.Deadline) {
		rec := c.closeLocked(e, StateExpired, now)
		e.mu.Unlock()
		c.finish(ctx, rec)
		return fmt.Errorf("%w: session %s", ErrDeadlinePassed, id)
	}
	if index < 0 || index >= len(e.ex.Questions) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidQuestion, index, len(e.ex.Questions))
	}
	e.s.Answers[index] = cloneAnswer(ans)
	e.mu.Unlock()
	return nil
}

// Submit merges answers, grades once and returns the result. Repeated
// calls, and calls after the timer expired the session, return the stored
// result. A submission that arrives after the deadline expires the session
// and its answers are discarded.
func (c *Controller) Submit(ctx context.Context, id string, answers map[int]grading.Answer) (*grading.Result, error) {
	e, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()

	e.mu.Lock()
	switch e.s.State {
	case StateGraded, StateExpired:
		res := e.s.Result
		e.mu.Unlock()
		return res, nil
	case StateCancelled:
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s was cancelled", ErrSessionClosed, id)
	}

	if !now.Before(e.s.Deadline) {
		rec := c.closeLocked(e, StateExpired, now)
		e.mu.Unlock()
		c.finish(ctx, rec)
		return rec.Result, nil
	}

	for idx := range answers {
		if idx < 0 || idx >= len(e.ex.Questions) {
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidQuestion, idx, len(e.ex.Questions))
		}
	}
	if err := e.transition(StateSubmitted); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	for idx, ans := range answers {
		e.s.Answers[idx] = cloneAnswer(ans)
	}
	rec := c.closeLocked(e, StateGraded, now)
	e.mu.Unlock()

	c.finish(ctx, rec)
	return rec.Result, nil
}

// Expire auto-submits the session when it is active and now is at or past
// its deadline. Otherwise it changes nothing and returns the current result,
// which is nil while the session is active.
func (c *Controller) Expire(ctx context.Context, id string, now time.Time) (*grading.Result, error) {
	e, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return c.expire(ctx, e, now), nil
}

// Cancel abandons an active session without grading it.
func (c *Controller) Cancel(ctx context.Context, id string) error {
	e, err := c.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.transition(StateCancelled); err != nil {
		return fmt.Errorf("cancel session %s: %w", id, err)
	}
	e.s.FinishedAt = c.clock.Now()
	e.stopTimer()

	c.log.Info("session cancelled", zap.String("session_id", id), zap.String("owner", e.s.Owner))
	return nil
}

// Tick expires overdue sessions whose timer has not run and drops finished
// sessions older than the retention window. It returns how many were dropped.
func (c *Controller) Tick(ctx context.Context, now time.Time) int {
	c.mu.RLock()
	all := make([]*entry, 0, len(c.sessions))
	for _, e := range c.sessions {
		all = append(all, e)
	}
	c.mu.RUnlock()

	for _, e := range all {
		c.expire(ctx, e, now)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for id, e := range c.sessions {
		e.mu.Lock()
		old := e.s.State.Terminal() && now.Sub(e.s.FinishedAt) > c.config.Retention
		e.mu.Unlock()
		if old {
			delete(c.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Len reports how many sessions are held.
func (c *Controller) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// Close stops every pending timer. Sessions stay readable.
func (c *Controller) Close() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.sessions {
		e.mu.Lock()
		e.stopTimer()
		e.mu.Unlock()
	}
}

// RunTicker calls Tick every interval until ctx is done.
func (c *Controller) RunTicker(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := c.Tick(ctx, c.clock.Now()); n > 0 {
				c.log.Debug("dropped finished sessions", zap.Int("count", n))
			}
		}
	}
}

func (c *Controller) lookup(id string) (*entry, error) {
	c.mu.RLock()
	e, ok := c.sessions[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

func (c *Controller) onDeadline(e *entry) {
	c.expire(context.Background(), e, c.clock.Now())
}

func (c *Controller) expire(ctx context.Context, e *entry, now time.Time) *grading.Result {
	e.mu.Lock()
	if e.s.State != StateActive || now.Before(e.s.Deadline) {
		res := e.s.Result
		e.mu.Unlock()
		return res
	}
	rec := c.closeLocked(e, StateExpired, now)
	e.mu.Unlock()

	c.finish(ctx, rec)
	return rec.Result
}

// closeLocked grades the recorded answers and moves e to final. The
// caller holds e.mu and has checked that the transition is valid.
func (c *Controller) closeLocked(e *entry, final State, now time.Time) *Record {
	e.s.Result = grading.Grade(e.ex, maps.Clone(e.s.Answers))
	if err := e.transition(final); err != nil {
		// Unreachable given the callers' state checks.
		c.log.Error("session transition rejected", zap.String("session_id", e.s.ID), zap.Error(err))
	}
	e.s.FinishedAt = now
	e.stopTimer()
	return e.record()
}

// finish runs the side effects of a grading outside the session lock.
func (c *Controller) finish(ctx context.Context, rec *Record) {
	ctx = context.WithoutCancel(ctx)

	if err := c.exercises.MarkGraded(ctx, rec.ExerciseID); err != nil && !errors.Is(err, exercise.ErrNotFound) {
		c.log.Warn("mark exercise graded", zap.String("exercise_id", rec.ExerciseID), zap.Error(err))
	}
	if c.sink != nil {
		if err := c.sink.RecordResult(ctx, *rec); err != nil {
			c.log.Error("record session result", zap.String("session_id", rec.SessionID), zap.Error(err))
		}
	}

	c.log.Info("session finished",
		zap.String("session_id", rec.SessionID),
		zap.String("state", rec.State.String()),
		zap.Int("score", rec.Result.Score),
		zap.Int("correct", rec.Result.CorrectCount),
		zap.Int("total", rec.Result.TotalCount))
}
