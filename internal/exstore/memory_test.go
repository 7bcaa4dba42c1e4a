package exstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lingua/internal/clock"
	"github.com/abhisek/lingua/internal/exercise"
)

var t0 = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func newExercise(owner string, kind exercise.Kind) *exercise.Exercise {
	return &exercise.Exercise{
		Owner:  owner,
		Kind:   kind,
		Prompt: exercise.PromptPayload{Title: "Weather"},
		Questions: []exercise.Question{
			{Type: exercise.QuestionMultipleChoice, Text: "Is it raining?", Options: []string{"yes", "no"}, CorrectIndex: 0},
		},
	}
}

func TestMemory_PutStampsAndGets(t *testing.T) {
	clk := clock.NewFake(t0)
	s := NewMemory(nil, clk)
	ctx := context.Background()

	ex := newExercise("u1", exercise.KindListening)
	id, err := s.Put(ctx, ex)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, id, ex.ID)
	assert.Equal(t, t0, ex.CreatedAt)
	assert.Equal(t, t0.Add(45*time.Minute), ex.ExpiresAt)

	got, found, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Weather", got.Prompt.Title)

	got.Questions[0].Options[0] = "tampered"
	again, _, _ := s.Get(ctx, id)
	assert.Equal(t, "yes", again.Questions[0].Options[0], "Get must return a copy")
}

func TestMemory_ExpiresWithoutSweep(t *testing.T) {
	clk := clock.NewFake(t0)
	s := NewMemory(TTLs{exercise.KindSpeaking: 10 * time.Minute}, clk)
	ctx := context.Background()

	speaking, _ := s.Put(ctx, newExercise("u1", exercise.KindSpeaking))
	listening, _ := s.Put(ctx, newExercise("u1", exercise.KindListening))

	clk.Advance(10 * time.Minute)
	_, found, _ := s.Get(ctx, speaking)
	assert.True(t, found, "still readable exactly at expiry")

	clk.Advance(time.Second)
	_, found, _ = s.Get(ctx, speaking)
	assert.False(t, found, "gone once past expiry, before any sweep")
	assert.Equal(t, 2, s.Len())
	assert.ErrorIs(t, s.MarkGraded(ctx, speaking), exercise.ErrNotFound)

	_, found, _ = s.Get(ctx, listening)
	assert.True(t, found, "per-kind TTL, default for listening")

	n, err := s.Sweep(ctx, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, s.Len())
}

func TestMemory_ExpiresInRealTime(t *testing.T) {
	s := NewMemory(TTLs{exercise.KindListening: time.Second}, nil)
	ctx := context.Background()

	id, _ := s.Put(ctx, newExercise("u1", exercise.KindListening))
	_, found, _ := s.Get(ctx, id)
	require.True(t, found)

	time.Sleep(1100 * time.Millisecond)
	_, found, _ = s.Get(ctx, id)
	assert.False(t, found)
}

func TestMemory_MarkGraded(t *testing.T) {
	s := NewMemory(nil, clock.NewFake(t0))
	ctx := context.Background()

	id, _ := s.Put(ctx, newExercise("u1", exercise.KindListening))
	require.NoError(t, s.MarkGraded(ctx, id))

	got, _, _ := s.Get(ctx, id)
	assert.True(t, got.Graded)
	assert.ErrorIs(t, s.MarkGraded(ctx, "nope"), exercise.ErrNotFound)
}

func TestMemory_ListRecent(t *testing.T) {
	clk := clock.NewFake(t0)
	s := NewMemory(nil, clk)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		id, _ := s.Put(ctx, newExercise("u1", exercise.KindListening))
		ids = append(ids, id)
		clk.Advance(10 * time.Minute)
	}
	s.Put(ctx, newExercise("u2", exercise.KindListening))

	// The first exercise expired at t0+45m; the clock is now at t0+40m.
	clk.Advance(6 * time.Minute)

	got, err := s.ListRecent(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[3], got[0].ID)
	assert.Equal(t, ids[2], got[1].ID)

	all, err := s.ListRecent(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	s := NewMemory(nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.Put(ctx, newExercise("u1", exercise.KindListening))
			assert.NoError(t, err)
			_, found, _ := s.Get(ctx, id)
			assert.True(t, found)
			assert.NoError(t, s.MarkGraded(ctx, id))
			s.ListRecent(ctx, "u1", 5)
			s.Sweep(ctx, time.Now())
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, s.Len())
}

func TestRunSweeper_StopsWithContext(t *testing.T) {
	clk := clock.NewFake(t0)
	s := NewMemory(TTLs{exercise.KindListening: time.Minute}, clk)
	s.Put(context.Background(), newExercise("u1", exercise.KindListening))
	clk.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunSweeper(ctx, s, 5*time.Millisecond, clk, nil) }()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
