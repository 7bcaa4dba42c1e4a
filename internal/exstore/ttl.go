// Package exstore holds generated exercises until they expire. Expiry is
// checked on every read, so a sweep is only ever compaction.
package exstore

import (
	"time"

	"github.com/abhisek/lingua/internal/exercise"
)

// DefaultTTL applies to any kind without an explicit entry.
const DefaultTTL = 45 * time.Minute

// DefaultRecentLimit applies when ListRecent is called with limit <= 0.
const DefaultRecentLimit = 25

// TTLs maps each kind to how long its exercises live.
type TTLs map[exercise.Kind]time.Duration

// DefaultTTLs returns DefaultTTL for every kind.
func DefaultTTLs() TTLs {
	t := make(TTLs, len(exercise.Kinds))
	for _, k := range exercise.Kinds {
		t[k] = DefaultTTL
	}
	return t
}

// For returns the TTL of kind k.
func (t TTLs) For(k exercise.Kind) time.Duration {
	if d, ok := t[k]; ok && d > 0 {
		return d
	}
	return DefaultTTL
}

// Max returns the longest configured TTL.
func (t TTLs) Max() time.Duration {
	m := DefaultTTL
	for _, d := range t {
		m = max(m, d)
	}
	return m
}
