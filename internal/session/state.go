package session

import (
	"errors"
	"fmt"
)

// State is the closed set of session states.
type State int

const (
	StateActive State = iota
	StateSubmitted
	StateGraded
	StateExpired
	StateCancelled
)

var stateNames = map[State]string{
	StateActive:    "active",
	StateSubmitted: "submitted",
	StateGraded:    "graded",
	StateExpired:   "expired",
	StateCancelled: "cancelled",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st, n := range stateNames {
		if n == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", b)
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateGraded || s == StateExpired || s == StateCancelled
}

var transitions = map[State][]State{
	StateActive:    {StateSubmitted, StateExpired, StateCancelled},
	StateSubmitted: {StateGraded},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	ErrSessionNotFound        = errors.New("session not found")
	ErrExerciseNotFound       = errors.New("exercise not found or expired")
	ErrInvalidStateTransition = errors.New("invalid session state transition")
	ErrSessionClosed          = errors.New("session is closed")
	ErrInvalidQuestion        = errors.New("invalid question index")
	ErrDeadlinePassed         = errors.New("session deadline has passed")
)
