package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hwmon/monitor/arbiter"
	"github.com/hwmon/monitor/event"
	"github.com/hwmon/monitor/internal/task"
	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/message"
	"github.com/hwmon/monitor/platform"
)

// Server accepts editor sessions and runs the heartbeat monitor, the discovery
// responder and the optional mDNS advertiser next to them.
type Server struct {
	cfg     *Config
	arbiter *arbiter.Arbiter
	handler event.Handler
	metrics *Metrics
	logger  logger.Logger

	heartbeat  *Heartbeat
	discovery  *Discovery
	advertiser *Advertiser

	listenerMu sync.Mutex
	listener   *net.TCPListener

	sessions *xsync.MapOf[uint64, *Session]
	nextID   atomic.Uint64
	shutdown atomic.Bool
}

// NewServer creates a Server. Events of every session are delivered to h.
func NewServer(
	cfg *Config,
	arb *arbiter.Arbiter,
	h event.Handler,
	power platform.DisplayPower,
	resolver platform.AddressResolver,
) *Server {
	metrics := &Metrics{}
	s := &Server{
		cfg:      cfg,
		arbiter:  arb,
		handler:  h,
		metrics:  metrics,
		logger:   cfg.logger.With("component", "server"),
		sessions: xsync.NewMapOf[uint64, *Session](),
	}
	s.heartbeat = NewHeartbeat(cfg, arb, power, metrics)
	s.discovery = NewDiscovery(cfg, resolver, metrics)
	s.advertiser = NewAdvertiser(cfg)

	return s
}

// Metrics returns the counters shared by all network components.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Heartbeat returns the heartbeat monitor run by the server.
func (s *Server) Heartbeat() *Heartbeat { return s.heartbeat }

// Discovery returns the discovery responder run by the server.
func (s *Server) Discovery() *Discovery { return s.discovery }

// Listen binds the session port. It is called by Run when needed; calling it first
// lets tests learn the bound address.
func (s *Server) Listen(ctx context.Context) error {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	if s.listener != nil {
		return nil
	}

	address := net.JoinHostPort(s.cfg.listenHost, strconv.Itoa(s.cfg.sessionPort))
	s.logger.Debug("try to listen", "address", address)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		s.logger.Error("failed to listen", "address", address, "error", err)
		return fmt.Errorf("listen %s: %w", address, err)
	}
	s.listener = listener.(*net.TCPListener)
	s.logger.Info("listening for editors", "address", listener.Addr().String())

	return nil
}

// Addr returns the bound session address, nil before Listen.
func (s *Server) Addr() net.Addr {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int { return s.sessions.Size() }

// Run listens and serves until ctx is cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	if err := s.discovery.Listen(ctx); err != nil {
		s.closeListener()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Serve(gctx) })
	g.Go(func() error { return s.heartbeat.Run(gctx) })
	g.Go(func() error { return s.discovery.Serve(gctx) })
	if s.cfg.advertise {
		g.Go(func() error { return s.advertiser.Run(gctx, s.Addr()) })
	}

	return g.Wait()
}

// Serve accepts sessions until ctx is cancelled. On return every session is closed.
func (s *Server) Serve(ctx context.Context) error {
	if s.shutdown.Load() {
		return ErrServerClosed
	}
	if s.getListener() == nil {
		return ErrNotListening
	}

	mgr := task.NewManager(ctx, s.logger, s.cfg.clock)
	err := mgr.Start("accept", func() bool { return s.tryAcceptConn(mgr) }, nil)
	if err != nil {
		return err
	}

	<-ctx.Done()
	s.shutdown.Store(true)
	s.closeListener()
	s.sessions.Range(func(_ uint64, sess *Session) bool {
		_ = sess.Close()
		return true
	})
	mgr.Stop()
	mgr.Wait()

	s.logger.Info("server stopped")

	return nil
}

func (s *Server) getListener() *net.TCPListener {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	return s.listener
}

func (s *Server) closeListener() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) tryAcceptConn(mgr *task.Manager) bool {
	listener := s.getListener()
	// listener already closed, skip
	if listener == nil {
		return false
	}

	_ = listener.SetDeadline(time.Now().Add(s.cfg.acceptTimeout))
	conn, err := listener.Accept()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return mgr.Context().Err() == nil // re-accept if context is not done
		}

		if !s.shutdown.Load() && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("failed to accept connection", "method", "tryAcceptConn", "error", err)
			return true
		}

		return false
	}

	id := s.nextID.Add(1)
	sess := newSession(id, conn, s.cfg, s.arbiter, s.handler, s.metrics)
	s.sessions.Store(id, sess)
	s.metrics.incActiveSessions()

	// Serve may have swept the sessions between Accept and Store
	if s.shutdown.Load() {
		s.sessions.Delete(id)
		s.metrics.decActiveSessions()
		_ = conn.Close()

		return false
	}

	s.logger.Debug("connection accepted", "method", "tryAcceptConn", "remote_address", conn.RemoteAddr())

	err = mgr.Go("session-"+strconv.FormatUint(id, 10), func(context.Context) {
		defer func() {
			s.sessions.Delete(id)
			s.metrics.decActiveSessions()
		}()
		sess.Serve()
	})
	if err != nil {
		s.sessions.Delete(id)
		s.metrics.decActiveSessions()
		_ = conn.Close()

		return false
	}

	return true
}

// DisconnectActive ends the active session on behalf of the user. The peer is told
// with a Disconnect frame and the heartbeat idle counter stays paused until the next handshake.
func (s *Server) DisconnectActive() {
	peer := s.arbiter.StopActive()
	if peer == nil {
		return
	}

	s.logger.Info("disconnect active session", "hostname", peer.Hostname())
	peer.Stop()

	sess, ok := peer.(*Session)
	if !ok {
		return
	}
	if err := sess.Send(&message.Disconnect{Header: message.Header{From: s.cfg.identity}}); err != nil {
		s.logger.Debug("failed to send disconnect", "error", err)
	}
	_ = sess.Close()
}
