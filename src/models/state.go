package models

// -----------------------------------------------------------------------------

// ConnectionState is the lifecycle state of the single upstream connection.
// Transitions happen only inside the stream connection manager.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateOpen
	StateClosed
)

// -----------------------------------------------------------------------------

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
