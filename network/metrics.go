package network

import (
	"sync/atomic"
)

// Metrics contains atomic counters of the network transport.
// Each field can back a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// SessionsAccepted counts handshakes that made a session active.
	SessionsAccepted atomic.Uint64
	// SessionsRejected counts handshakes rejected for version or exclusivity.
	SessionsRejected atomic.Uint64
	// ActiveSessions is the number of open TCP sessions, including unaccepted ones.
	ActiveSessions atomic.Int64

	// FramesReceived counts decoded frames.
	FramesReceived atomic.Uint64
	// DecodeErrors counts dropped frames.
	DecodeErrors atomic.Uint64

	// HeartbeatSent counts heartbeat frames written.
	HeartbeatSent atomic.Uint64
	// HeartbeatErrors counts failed heartbeat connects and writes.
	HeartbeatErrors atomic.Uint64

	// DiscoveryReplies counts replies sent to editors.
	DiscoveryReplies atomic.Uint64
	// DiscoveryErrors counts invalid probes and failed replies.
	DiscoveryErrors atomic.Uint64
	// DiscoveryLimited counts probes dropped by the reply rate limit.
	DiscoveryLimited atomic.Uint64
}

func (m *Metrics) incSessionsAccepted() { m.SessionsAccepted.Add(1) }
func (m *Metrics) incSessionsRejected() { m.SessionsRejected.Add(1) }
func (m *Metrics) incActiveSessions()   { m.ActiveSessions.Add(1) }
func (m *Metrics) decActiveSessions()   { m.ActiveSessions.Add(-1) }
func (m *Metrics) incFramesReceived()   { m.FramesReceived.Add(1) }
func (m *Metrics) incDecodeErrors()     { m.DecodeErrors.Add(1) }
func (m *Metrics) incHeartbeatSent()    { m.HeartbeatSent.Add(1) }
func (m *Metrics) incHeartbeatErrors()  { m.HeartbeatErrors.Add(1) }
func (m *Metrics) incDiscoveryReplies() { m.DiscoveryReplies.Add(1) }
func (m *Metrics) incDiscoveryErrors()  { m.DiscoveryErrors.Add(1) }
func (m *Metrics) incDiscoveryLimited() { m.DiscoveryLimited.Add(1) }
