package fileselector

import (
	"errors"
	"fmt"
)

// State is the progress of one selection call.
type State int

const (
	StateIdle State = iota
	StateAwaitingPickerResult
	StateSucceeded
	StateCancelled
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPickerResult:
		return "awaiting_picker_result"
	case StateSucceeded:
		return "succeeded"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateCancelled || s == StateFailed
}

// ErrInvalidTransition reports a transition the state machine forbids.
var ErrInvalidTransition = errors.New("invalid state transition")

// machine tracks one call. Awaiting may re-enter itself when a marker was
// cancelled and the next marker runs.
type machine struct {
	state State
}

func (m *machine) to(next State) error {
	ok := false
	switch m.state {
	case StateIdle:
		ok = next == StateAwaitingPickerResult || next == StateFailed
	case StateAwaitingPickerResult:
		ok = next == StateAwaitingPickerResult || next.Terminal()
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
	}
	m.state = next
	return nil
}
