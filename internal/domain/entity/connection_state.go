// Package entity contains the core business objects of the project.
package entity

// ConnectionState models the realtime channel lifecycle. Transitions are
// total: every open/close/error/retry-exhausted event has exactly one defined
// next state.
type ConnectionState int

const (
	// StateDisconnected is the initial state and the state after an explicit
	// Disconnect call.
	StateDisconnected ConnectionState = iota
	// StateConnecting is entered while a dial is in flight.
	StateConnecting
	// StateConnected is entered on a successful open.
	StateConnected
	// StateReconnecting is entered after a close or error while automatic
	// retries remain.
	StateReconnecting
	// StateExhausted is the terminal state after the retry budget is spent;
	// only an explicit Connect leaves it.
	StateExhausted
)

// String returns the state name used in logs and the status surface.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateExhausted:
		return "disconnected_exhausted"
	default:
		return "unknown"
	}
}
