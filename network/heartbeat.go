package network

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hwmon/monitor/arbiter"
	"github.com/hwmon/monitor/internal/task"
	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/message"
	"github.com/hwmon/monitor/platform"
)

// Heartbeat keeps an outbound connection to the active editor and writes a Heartbeat
// frame every interval. While no editor is active it counts idle ticks and switches
// the display off once the idle threshold is exceeded.
type Heartbeat struct {
	cfg     *Config
	arbiter *arbiter.Arbiter
	power   platform.DisplayPower
	metrics *Metrics
	logger  logger.Logger
	dialer  net.Dialer

	mu             sync.Mutex
	conn           net.Conn
	connIP         net.IP
	idleTicks      int
	counterEnabled bool
}

// NewHeartbeat creates a heartbeat monitor. A nil power disables display control.
func NewHeartbeat(cfg *Config, arb *arbiter.Arbiter, power platform.DisplayPower, metrics *Metrics) *Heartbeat {
	if metrics == nil {
		metrics = &Metrics{}
	}

	return &Heartbeat{
		cfg:     cfg,
		arbiter: arb,
		power:   power,
		metrics: metrics,
		logger:  cfg.logger.With("component", "heartbeat"),
		dialer:  net.Dialer{Timeout: cfg.heartbeatDialTimeout},
	}
}

// Run ticks every heartbeat interval on the configured clock until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) error {
	mgr := task.NewManager(ctx, h.logger, h.cfg.clock)
	err := mgr.StartInterval("heartbeat", func() bool {
		h.tick(ctx)
		return true
	}, h.cfg.heartbeatInterval, false)
	if err != nil {
		return err
	}

	<-ctx.Done()
	mgr.Stop()
	mgr.Wait()
	h.Close()

	return nil
}

// Close closes the outbound connection.
func (h *Heartbeat) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closeConnLocked()
}

// IdleTicks returns the current value of the idle counter.
func (h *Heartbeat) IdleTicks() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.idleTicks
}

func (h *Heartbeat) closeConnLocked() {
	if h.conn != nil {
		_ = h.conn.Close()
		h.conn = nil
		h.connIP = nil
	}
}

func (h *Heartbeat) tick(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	peer := h.arbiter.Address()
	if h.conn != nil && (peer == nil || !peer.Equal(h.connIP)) {
		h.logger.Debug("drop heartbeat connection", "address", h.connIP)
		h.closeConnLocked()
	}
	if h.conn == nil && peer != nil {
		h.connect(ctx, peer)
	}

	if h.arbiter.IsActive() {
		if h.conn == nil {
			return
		}
		if err := h.send(); err != nil {
			h.metrics.incHeartbeatErrors()
			h.logger.Warn("failed to send heartbeat", "address", h.connIP, "error", err)
			h.closeConnLocked()

			return
		}
		h.metrics.incHeartbeatSent()
		h.idleTicks = 0
		h.counterEnabled = true
		h.setPower(true)

		return
	}

	if !h.counterEnabled || h.arbiter.IsStopped() || h.cfg.idleThreshold == 0 {
		return
	}

	h.idleTicks++
	if time.Duration(h.idleTicks)*h.cfg.heartbeatInterval > h.cfg.idleThreshold {
		h.setPower(false)
	}
}

func (h *Heartbeat) connect(ctx context.Context, ip net.IP) {
	address := net.JoinHostPort(ip.String(), strconv.Itoa(h.cfg.heartbeatPort))
	conn, err := h.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		h.metrics.incHeartbeatErrors()
		h.logger.Warn("failed to connect heartbeat", "address", address, "error", err)

		return
	}
	h.logger.Debug("heartbeat connected", "address", address)
	h.conn = conn
	h.connIP = ip
}

func (h *Heartbeat) send() error {
	_ = h.conn.SetWriteDeadline(time.Now().Add(h.cfg.writeTimeout))
	_, err := h.conn.Write(message.Encode(&message.Heartbeat{Header: message.Header{From: h.cfg.identity}}))

	return err
}

// setPower switches the display only on a state change, so the off transition
// fires once per idle period.
func (h *Heartbeat) setPower(enabled bool) {
	if h.power == nil || h.power.DisplayEnabled() == enabled {
		return
	}
	if err := h.power.SetDisplayPower(enabled); err != nil {
		h.logger.Warn("failed to set display power", "enabled", enabled, "error", err)
		return
	}
	h.logger.Info("display power changed", "enabled", enabled)
}
