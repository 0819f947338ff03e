package transport

import "fmt"

type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateError
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateEvent reports a transition. Terminal is set on the error event after
// which no automatic retry follows.
type StateEvent struct {
	State    State
	Retries  int
	Terminal bool
	Err      error
}
