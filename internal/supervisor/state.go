package supervisor

import "fmt"

// State is the supervisor lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// StateEvent describes one state transition.
type StateEvent struct {
	From      State
	To        State
	SessionID string // empty when no session was involved
	PID       int
	Err       error // cause, for failed starts and stream terminations
}
