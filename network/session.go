package network

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hwmon/monitor/arbiter"
	"github.com/hwmon/monitor/event"
	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/message"
)

// RejectReason tells why a handshake was refused.
type RejectReason uint8

const (
	RejectNone RejectReason = iota
	RejectVersionMismatch
	RejectInUse
)

func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "none"
	case RejectVersionMismatch:
		return "version mismatch"
	case RejectInUse:
		return "currently in use"
	default:
		return "unknown"
	}
}

// Session is one TCP connection from an editor.
//
// A Session reads fixed size frames until the peer disconnects, the transport fails
// or it is stopped. It implements arbiter.Peer.
type Session struct {
	id      uint64
	conn    net.Conn
	cfg     *Config
	arbiter *arbiter.Arbiter
	handler event.Handler
	metrics *Metrics
	logger  logger.Logger

	state    atomic.Uint32
	accepted atomic.Bool
	stopped  atomic.Bool

	mu       sync.Mutex // protects hostname and remoteIP
	hostname string
	remoteIP net.IP

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

var _ arbiter.Peer = (*Session)(nil)

func newSession(id uint64, conn net.Conn, cfg *Config, arb *arbiter.Arbiter, h event.Handler, metrics *Metrics) *Session {
	s := &Session{
		id:      id,
		conn:    conn,
		cfg:     cfg,
		arbiter: arb,
		handler: h,
		metrics: metrics,
		logger:  cfg.logger.With("session_id", id, "remote_address", conn.RemoteAddr().String()),
		done:    make(chan struct{}),
	}
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		s.remoteIP = addr.IP
	}

	return s
}

// ID returns the server assigned session id.
func (s *Session) ID() uint64 { return s.id }

// State returns the current session state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Hostname returns the hostname announced in the handshake.
func (s *Session) Hostname() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hostname
}

// RemoteIP returns the address the heartbeat monitor connects to.
func (s *Session) RemoteIP() net.IP {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remoteIP
}

// Stop asks the session to end. The reader exits after the next frame; use Close
// to end it immediately.
func (s *Session) Stop() {
	s.stopped.Store(true)
}

// IsStopped reports whether Stop was called.
func (s *Session) IsStopped() bool { return s.stopped.Load() }

// Close stops the session and closes its transport, unblocking the reader.
func (s *Session) Close() error {
	s.Stop()
	return s.conn.Close()
}

// Done is closed after cleanup finished.
func (s *Session) Done() <-chan struct{} { return s.done }

// Serve reads frames until the session ends and then runs cleanup exactly once.
func (s *Session) Serve() {
	defer s.cleanup()

	s.logger.Debug("session opened")

	buf := make([]byte, message.Size)
	for !s.stopped.Load() {
		if _, err := io.ReadFull(s.conn, buf); err != nil {
			if !s.stopped.Load() && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("failed to read frame", "error", err)
			}
			return
		}

		msg, err := message.Decode(buf)
		if err != nil {
			s.metrics.incDecodeErrors()
			s.logger.Warn("drop malformed frame", "error", err)
			continue
		}
		s.metrics.incFramesReceived()

		if !s.handleMessage(msg) {
			return
		}
	}
}

// handleMessage processes one frame and reports whether the session continues.
func (s *Session) handleMessage(msg message.Message) bool {
	s.logger.Debug("frame received", message.MsgInfo(msg, "state", s.State().String())...)

	if _, ok := msg.(*message.Disconnect); ok {
		s.logger.Info("peer disconnected")
		return false
	}

	switch s.State() {
	case AwaitingHandshake:
		req, ok := msg.(*message.ConnectionRequest)
		if !ok {
			s.logger.Warn("drop frame before handshake", message.MsgInfo(msg)...)
			return true
		}

		return s.handshake(req)

	case Active:
		if ev, ok := event.FromMessage(event.Network, msg); ok {
			s.handler.Handle(ev)
			return true
		}
		s.logger.Debug("ignore frame", message.MsgInfo(msg)...)

		return true

	default:
		return false
	}
}

// handshake answers req. Version compatibility is checked before exclusivity, so an
// outdated editor learns about the mismatch even while another editor is connected.
func (s *Session) handshake(req *message.ConnectionRequest) bool {
	s.mu.Lock()
	s.hostname = req.Hostname
	if req.Address != (message.IPv4{}) {
		s.remoteIP = net.IP(req.Address[:]).To16()
	}
	s.mu.Unlock()

	resp := &message.ConnectionResponse{
		Header:   message.Header{From: s.cfg.identity},
		Version:  s.cfg.version,
		Hostname: s.cfg.hostnameOrDefault(),
	}

	if !message.Compatible(s.cfg.version, req.Version) {
		resp.VersionMismatch = true
		s.reject(resp, RejectVersionMismatch,
			"editor_version", req.Version.String(),
			"compatibility", message.CheckCompatibility(s.cfg.version, req.Version).String())

		return false
	}

	res := s.arbiter.TryAcquire(s, req.Force)
	if !res.Accepted {
		resp.InUse = true
		resp.Hostname = res.Holder
		s.reject(resp, RejectInUse, "holder", res.Holder)

		return false
	}

	if res.Superseded != nil {
		s.logger.Info("supersede active session", "previous", res.Superseded.Hostname())
		res.Superseded.Stop()
		if c, ok := res.Superseded.(io.Closer); ok {
			_ = c.Close()
		}
	}

	resp.Accepted = true
	s.accepted.Store(true)
	s.state.Store(uint32(Active))
	s.metrics.incSessionsAccepted()

	if err := s.Send(resp); err != nil {
		s.logger.Warn("failed to send handshake response", "error", err)
		return false
	}

	s.logger.Info("handshake accepted", "hostname", req.Hostname, "force", req.Force)
	s.handler.Handle(event.Event{Kind: event.Connected, Transport: event.Network, Hostname: req.Hostname})

	return true
}

func (s *Session) reject(resp *message.ConnectionResponse, reason RejectReason, keysAndValues ...any) {
	s.metrics.incSessionsRejected()
	s.logger.Info("handshake rejected", append([]any{"reason", reason.String()}, keysAndValues...)...)

	if err := s.Send(resp); err != nil {
		s.logger.Debug("failed to send rejection", "error", err)
	}
}

// Send writes one frame to the peer.
func (s *Session) Send(msg message.Message) error {
	if s.State().IsClosed() {
		return ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.writeTimeout))
	_, err := s.conn.Write(message.Encode(msg))

	return err
}

func (s *Session) cleanup() {
	s.closeOnce.Do(func() {
		s.state.Store(uint32(Closed))
		wasActive := s.arbiter.ClearIf(s)

		if s.accepted.Load() {
			s.handler.Handle(event.Event{
				Kind:       event.Disconnected,
				Transport:  event.Network,
				Hostname:   s.Hostname(),
				Superseded: !wasActive,
			})
		}

		_ = s.conn.Close()
		s.logger.Debug("session closed", "accepted", s.accepted.Load())
		close(s.done)
	})
}
