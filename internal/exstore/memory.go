package exstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/lingua/internal/clock"
	"github.com/abhisek/lingua/internal/exercise"
)

// Memory is an in-process exercise.Store guarded by a single RWMutex.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*exercise.Exercise
	ttls  TTLs
	clock clock.Clock
}

// NewMemory creates an empty in-memory store.
func NewMemory(ttls TTLs, clk clock.Clock) *Memory {
	if ttls == nil {
		ttls = DefaultTTLs()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Memory{items: make(map[string]*exercise.Exercise), ttls: ttls, clock: clk}
}

func (m *Memory) Put(_ context.Context, ex *exercise.Exercise) (string, error) {
	stamp(ex, m.clock.Now(), m.ttls)

	m.mu.Lock()
	m.items[ex.ID] = ex.Clone()
	m.mu.Unlock()
	return ex.ID, nil
}

func (m *Memory) Get(_ context.Context, id string) (*exercise.Exercise, bool, error) {
	now := m.clock.Now()

	m.mu.RLock()
	ex, ok := m.items[id]
	if !ok || ex.Expired(now) {
		m.mu.RUnlock()
		return nil, false, nil
	}
	c := ex.Clone()
	m.mu.RUnlock()
	return c, true, nil
}

func (m *Memory) MarkGraded(_ context.Context, id string) error {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.items[id]
	if !ok || ex.Expired(now) {
		return exercise.ErrNotFound
	}
	ex.Graded = true
	return nil
}

func (m *Memory) ListRecent(_ context.Context, owner string, limit int) ([]*exercise.Exercise, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	now := m.clock.Now()

	m.mu.RLock()
	var out []*exercise.Exercise
	for _, ex := range m.items {
		if ex.Owner == owner && !ex.Expired(now) {
			out = append(out, ex.Clone())
		}
	}
	m.mu.RUnlock()

	sortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, ex := range m.items {
		if ex.Expired(now) {
			delete(m.items, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many entries are held, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func stamp(ex *exercise.Exercise, now time.Time, ttls TTLs) {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	ex.CreatedAt = now
	ex.ExpiresAt = now.Add(ttls.For(ex.Kind))
	ex.Graded = false
}

func sortNewestFirst(exs []*exercise.Exercise) {
	sort.Slice(exs, func(i, j int) bool {
		if exs[i].CreatedAt.Equal(exs[j].CreatedAt) {
			return exs[i].ID > exs[j].ID
		}
		return exs[i].CreatedAt.After(exs[j].CreatedAt)
	})
}
