// Package metrics exposes the transport counters as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hwmon/monitor/display"
	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/network"
	"github.com/hwmon/monitor/serial"
)

const namespace = "hwmonitor"

func counter(subsystem, name, help string, v *atomic.Uint64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(v.Load()) })
}

func gauge(subsystem, name, help string, f func() float64) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, f)
}

// NetworkCollectors returns collectors reading the network transport counters.
func NetworkCollectors(m *network.Metrics) []prometheus.Collector {
	return []prometheus.Collector{
		counter("network", "sessions_accepted_total", "Handshakes that made a session active.", &m.SessionsAccepted),
		counter("network", "sessions_rejected_total", "Handshakes rejected for version or exclusivity.", &m.SessionsRejected),
		gauge("network", "open_sessions", "Open TCP sessions.", func() float64 { return float64(m.ActiveSessions.Load()) }),
		counter("network", "frames_received_total", "Decoded session frames.", &m.FramesReceived),
		counter("network", "decode_errors_total", "Dropped malformed session frames.", &m.DecodeErrors),
		counter("network", "heartbeats_sent_total", "Heartbeat frames written.", &m.HeartbeatSent),
		counter("network", "heartbeat_errors_total", "Failed heartbeat connects and writes.", &m.HeartbeatErrors),
		counter("network", "discovery_replies_total", "Replies sent to editor broadcasts.", &m.DiscoveryReplies),
		counter("network", "discovery_errors_total", "Invalid broadcasts and failed replies.", &m.DiscoveryErrors),
		counter("network", "discovery_limited_total", "Broadcasts dropped by the reply rate limit.", &m.DiscoveryLimited),
	}
}

// SerialCollectors returns collectors reading the serial transport counters.
func SerialCollectors(m *serial.Metrics) []prometheus.Collector {
	return []prometheus.Collector{
		counter("serial", "frames_received_total", "Decoded serial frames.", &m.FramesReceived),
		counter("serial", "checksum_errors_total", "Frames with a checksum mismatch.", &m.ChecksumErrors),
		counter("serial", "decode_errors_total", "Frames with a valid checksum that failed to decode.", &m.DecodeErrors),
		counter("serial", "frame_timeouts_total", "Frames that did not complete in time.", &m.FrameTimeouts),
		counter("serial", "dropped_frames_total", "Frames of a sender other than the bound editor.", &m.DroppedFrames),
		counter("serial", "confirmations_ok_total", "Positive confirmations sent.", &m.ConfirmationsOK),
		counter("serial", "confirmations_nak_total", "Negative confirmations sent.", &m.ConfirmationsNAK),
		counter("serial", "handshakes_ok_total", "Accepted handshakes.", &m.HandshakesOK),
		counter("serial", "handshakes_failed_total", "Rejected handshakes.", &m.HandshakesFailed),
		counter("serial", "files_received_total", "Completed file transfers.", &m.FilesReceived),
	}
}

// DisplayCollectors returns collectors describing the page model.
func DisplayCollectors(s *display.Scheduler) []prometheus.Collector {
	return []prometheus.Collector{
		gauge("display", "pages", "Pages known to the scheduler.", func() float64 { return float64(s.PageCount()) }),
	}
}

// Register registers every collector with reg.
func Register(reg prometheus.Registerer, collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}

	return nil
}

// Handler serves the metrics gathered from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, l logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	l.Info("serving metrics", "address", listener.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
