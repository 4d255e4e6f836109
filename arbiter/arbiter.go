// Package arbiter guards the single controller of a monitor.
//
// An Arbiter is the only state shared between the session listener, the per-connection
// readers and the heartbeat monitor. Every method takes the same lock for the duration of
// a read or write and never calls into a Peer while holding it.
package arbiter

import (
	"net"

	"github.com/hwmon/monitor/internal/syncutil"
)

// Peer is a session that can become the active controller.
type Peer interface {
	// Hostname returns the hostname the peer announced during its handshake.
	Hostname() string
	// RemoteIP returns the peer's network address, nil for serial peers.
	RemoteIP() net.IP
	// Stop asks the peer to end its session.
	Stop()
}

// Result describes the outcome of TryAcquire.
type Result struct {
	// Accepted is true when the candidate became the active peer.
	Accepted bool
	// Holder is the hostname of the active peer that caused a rejection.
	Holder string
	// Superseded is the previous active peer replaced by a forced acquire.
	// The caller stops it after TryAcquire returns.
	Superseded Peer
}

// Arbiter holds at most one active Peer.
type Arbiter struct {
	mu       syncutil.Mutex
	active   Peer
	hostname string
	addr     net.IP
	live     bool
	stopped  bool
}

// New creates an Arbiter without an active peer.
func New() *Arbiter {
	return &Arbiter{}
}

// TryAcquire makes candidate the active peer unless another peer is active and force is false.
// The check and the update happen under one lock, so of two concurrent non-forced
// candidates exactly one is accepted.
func (a *Arbiter) TryAcquire(candidate Peer, force bool) Result {
	hostname := candidate.Hostname()
	addr := candidate.RemoteIP()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active != nil && a.active != candidate && !force {
		return Result{Holder: a.hostname}
	}

	res := Result{Accepted: true}
	if a.active != nil && a.active != candidate {
		res.Superseded = a.active
	}
	a.set(candidate, hostname, addr)

	return res
}

// SetActiveSession unconditionally replaces the active peer and marks it live.
// It returns the replaced peer, if any.
func (a *Arbiter) SetActiveSession(p Peer) Peer {
	var hostname string
	var addr net.IP
	if p != nil {
		hostname = p.Hostname()
		addr = p.RemoteIP()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.active
	if p == nil {
		a.clear()
	} else {
		a.set(p, hostname, addr)
	}

	return prev
}

func (a *Arbiter) set(p Peer, hostname string, addr net.IP) {
	a.active = p
	a.hostname = hostname
	a.addr = addr
	a.live = true
	a.stopped = false
}

func (a *Arbiter) clear() {
	a.active = nil
	a.hostname = ""
	a.addr = nil
	a.live = false
}

// Clear removes the active peer.
func (a *Arbiter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.clear()
}

// ClearIf removes p if it is the active peer and reports whether it was.
// A superseded session calls this during cleanup without disturbing its successor.
func (a *Arbiter) ClearIf(p Peer) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active == nil || a.active != p {
		return false
	}
	a.clear()

	return true
}

// StopActive marks the arbiter as stopped by the user and returns the active peer,
// which the caller must stop. While stopped the heartbeat idle counter does not run.
func (a *Arbiter) StopActive() Peer {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopped = true
	a.live = false

	return a.active
}

// IsStopped reports whether the last session was ended by StopActive.
func (a *Arbiter) IsStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.stopped
}

// Active returns the active peer or nil.
func (a *Arbiter) Active() Peer {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.active
}

// IsActive reports whether there is a live active peer.
func (a *Arbiter) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.active != nil && a.live
}

// Is reports whether p is the active peer.
func (a *Arbiter) Is(p Peer) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return p != nil && a.active == p
}

// Hostname returns the hostname of the active peer, empty without one.
func (a *Arbiter) Hostname() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.hostname
}

// Address returns a copy of the active peer's address, nil without one.
func (a *Arbiter) Address() net.IP {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.addr == nil {
		return nil
	}

	return append(net.IP(nil), a.addr...)
}

// IsLive reports the liveness flag of the active peer.
func (a *Arbiter) IsLive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.live
}

// SetLive sets the liveness flag. It has no effect without an active peer.
func (a *Arbiter) SetLive(live bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active != nil {
		a.live = live
	}
}
