package network

// SessionState represents the state of a network session.
type SessionState uint32

const (
	// AwaitingHandshake is the initial state until a ConnectionRequest is answered.
	AwaitingHandshake SessionState = iota
	// Active means the handshake was accepted and configuration frames are dispatched.
	Active
	// Closed is terminal; the transport is closed and cleanup has run.
	Closed
)

func (s SessionState) String() string {
	switch s {
	case AwaitingHandshake:
		return "awaiting-handshake"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsActive returns true if the state is Active.
func (s SessionState) IsActive() bool { return s == Active }

// IsClosed returns true if the state is Closed.
func (s SessionState) IsClosed() bool { return s == Closed }
