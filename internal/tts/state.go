package tts

// SessionState is the lifecycle state of a reading session.
type SessionState int32

const (
	// StateIdle is a session that has been built but not yet submitted.
	StateIdle SessionState = iota

	// StateActive is entered once every segment has been submitted.
	StateActive

	// StateDone means every segment was played or skipped.
	StateDone

	// StateCancelled means the token was set before the last segment ended.
	StateCancelled
)

var validTransitions = map[SessionState][]SessionState{
	StateIdle:   {StateActive},
	StateActive: {StateDone, StateCancelled},
}

// String returns the string representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s SessionState) IsTerminal() bool {
	return s == StateDone || s == StateCancelled
}

// CanTransition reports whether moving from s to next is allowed.
func (s SessionState) CanTransition(next SessionState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
