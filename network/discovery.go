package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"

	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/message"
	"github.com/hwmon/monitor/platform"
)

// Discovery answers editor broadcasts on the discovery port by connecting back
// to the editor and sending a BroadcastReply with the monitor's address.
type Discovery struct {
	cfg      *Config
	resolver platform.AddressResolver
	metrics  *Metrics
	logger   logger.Logger
	dialer   net.Dialer

	mu   sync.Mutex
	conn net.PacketConn

	limiters *xsync.MapOf[string, *rate.Limiter]
}

// NewDiscovery creates a discovery responder. A nil resolver uses platform.SystemResolver.
func NewDiscovery(cfg *Config, resolver platform.AddressResolver, metrics *Metrics) *Discovery {
	if resolver == nil {
		resolver = platform.SystemResolver{}
	}
	if metrics == nil {
		metrics = &Metrics{}
	}

	return &Discovery{
		cfg:      cfg,
		resolver: resolver,
		metrics:  metrics,
		logger:   cfg.logger.With("component", "discovery"),
		dialer:   net.Dialer{Timeout: cfg.replyDialTimeout},
		limiters: xsync.NewMapOf[string, *rate.Limiter](),
	}
}

// Listen binds the UDP discovery port.
func (d *Discovery) Listen(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		return nil
	}

	address := net.JoinHostPort(d.cfg.listenHost, strconv.Itoa(d.cfg.discoveryPort))
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", address)
	if err != nil {
		d.logger.Error("failed to listen", "address", address, "error", err)
		return fmt.Errorf("listen %s: %w", address, err)
	}
	d.conn = conn
	d.logger.Info("listening for broadcasts", "address", conn.LocalAddr().String())

	return nil
}

// Addr returns the bound UDP address, nil before Listen.
func (d *Discovery) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}

	return d.conn.LocalAddr()
}

// Serve handles datagrams until ctx is cancelled. A failing datagram never stops the responder.
func (d *Discovery) Serve(ctx context.Context) error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return ErrNotListening
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	buf := make([]byte, 2*message.Size)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				d.closeConn(conn)
				return nil
			}
			d.logger.Warn("failed to read datagram", "error", err)

			continue
		}

		if err := d.Handle(ctx, buf[:n], from); err != nil {
			if errors.Is(err, ErrRateLimited) {
				d.logger.Debug("drop broadcast", "from", from.String(), "error", err)
				continue
			}
			d.logger.Warn("failed to answer broadcast", "from", from.String(), "error", err)
		}
	}
}

func (d *Discovery) closeConn(conn net.PacketConn) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_ = conn.Close()
	if d.conn == conn {
		d.conn = nil
	}
}

// Handle answers a single datagram received from the given address.
func (d *Discovery) Handle(ctx context.Context, datagram []byte, from net.Addr) error {
	msg, err := message.Decode(datagram)
	if err != nil {
		d.metrics.incDiscoveryErrors()
		return err
	}

	probe, ok := msg.(*message.Broadcast)
	if !ok || probe.SystemID != message.EditorSystemID {
		d.metrics.incDiscoveryErrors()
		return fmt.Errorf("%w: %s", ErrNotBroadcast, msg.Type())
	}

	target := net.IP(probe.Address[:]).To16()
	if probe.Address == (message.IPv4{}) {
		udpAddr, ok := from.(*net.UDPAddr)
		if !ok {
			d.metrics.incDiscoveryErrors()
			return fmt.Errorf("%w: no reply address", ErrNotBroadcast)
		}
		target = udpAddr.IP
	}

	if !d.allow(target.String()) {
		d.metrics.incDiscoveryLimited()
		return ErrRateLimited
	}

	reply, err := d.buildReply()
	if err != nil {
		d.metrics.incDiscoveryErrors()
		return err
	}

	if err := d.sendReply(ctx, target, reply); err != nil {
		d.metrics.incDiscoveryErrors()
		return err
	}
	d.metrics.incDiscoveryReplies()
	d.logger.Debug("broadcast answered", "editor", target.String())

	return nil
}

func (d *Discovery) allow(key string) bool {
	if d.cfg.replyInterval == 0 {
		return true
	}

	limiter, _ := d.limiters.LoadOrCompute(key, func() *rate.Limiter {
		return rate.NewLimiter(rate.Every(d.cfg.replyInterval), d.cfg.replyBurst)
	})

	return limiter.AllowN(d.cfg.clock.Now(), 1)
}

func (d *Discovery) buildReply() (*message.BroadcastReply, error) {
	local, err := d.resolver.LocalAddress()
	if err != nil {
		return nil, fmt.Errorf("resolve local address: %w", err)
	}

	reply := &message.BroadcastReply{
		Header:   message.Header{From: d.cfg.identity},
		SystemID: message.MonitorSystemID,
		Version:  d.cfg.version,
		Hostname: local.Hostname,
	}
	if d.cfg.hostname != "" {
		reply.Hostname = d.cfg.hostname
	}
	copy(reply.MAC[:], local.MAC)
	if ip4 := local.IP.To4(); ip4 != nil {
		copy(reply.Address[:], ip4)
	}

	return reply, nil
}

func (d *Discovery) sendReply(ctx context.Context, ip net.IP, reply *message.BroadcastReply) error {
	address := net.JoinHostPort(ip.String(), strconv.Itoa(d.cfg.discoveryReplyPort))

	conn, err := d.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("connect %s: %w", address, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(d.cfg.writeTimeout))
	if _, err := conn.Write(message.Encode(reply)); err != nil {
		return fmt.Errorf("write reply to %s: %w", address, err)
	}

	return nil
}
