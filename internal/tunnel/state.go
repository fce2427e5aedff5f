package tunnel

import "fmt"

// State is the session's position in the connection life cycle.
type State int32

// Session states.
const (
	StateIdle State = iota
	StateDiscovering
	StateConnecting
	StateConnected
	StateDisconnecting
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateDiscovering:   "discovering",
	StateConnecting:    "connecting",
	StateConnected:     "connected",
	StateDisconnecting: "disconnecting",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}
