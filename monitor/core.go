// Package monitor is the application core. It turns transport events into changes
// of the page model and drives the renderer through the display dispatcher.
package monitor

import (
	"context"
	"errors"
	"io"

	"github.com/hwmon/monitor/arbiter"
	"github.com/hwmon/monitor/display"
	"github.com/hwmon/monitor/event"
	"github.com/hwmon/monitor/internal/task"
	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/message"
	"github.com/hwmon/monitor/platform"
)

// ErrNoActiveSession is returned by Disconnect when no editor is connected.
var ErrNoActiveSession = errors.New("monitor: no active session")

// Core implements event.Handler. Events are applied on the dispatcher goroutine
// in the order they were received.
type Core struct {
	scheduler  *display.Scheduler
	dispatcher *display.Dispatcher
	renderer   display.Renderer
	arbiter    *arbiter.Arbiter
	files      platform.FileStore
	networks   platform.NetworkManager
	logger     logger.Logger
}

var _ event.Handler = (*Core)(nil)

// Option configures a Core.
type Option func(*Core)

// WithFileStore sets where transferred files are written.
func WithFileStore(fs platform.FileStore) Option {
	return func(c *Core) { c.files = fs }
}

// WithNetworkManager sets the wireless network backend.
func WithNetworkManager(nm platform.NetworkManager) Option {
	return func(c *Core) { c.networks = nm }
}

// WithLogger sets the core logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Core) { c.logger = l }
}

// New creates a Core. The scheduler must render through the same dispatcher.
func New(s *display.Scheduler, d *display.Dispatcher, r display.Renderer, arb *arbiter.Arbiter, opts ...Option) *Core {
	c := &Core{
		scheduler:  s,
		dispatcher: d,
		renderer:   r,
		arbiter:    arb,
		networks:   platform.NoopNetworkManager{},
		logger:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "core")

	return c
}

// Run shows the waiting view, then runs the dispatcher and the page rotation until ctx is cancelled.
func (c *Core) Run(ctx context.Context) error {
	mgr := task.NewManager(ctx, c.logger, nil)

	c.render(func(r display.Renderer) { r.RenderWaiting() })
	if err := mgr.Go("dispatcher", c.dispatcher.Run); err != nil {
		return err
	}
	if err := mgr.Go("rotation", c.scheduler.Run); err != nil {
		mgr.Stop()
		mgr.Wait()
		return err
	}

	<-ctx.Done()
	mgr.Stop()
	mgr.Wait()

	return nil
}

// Handle queues ev for the dispatcher goroutine.
func (c *Core) Handle(ev event.Event) {
	c.dispatcher.Post(func() { c.apply(ev) })
}

func (c *Core) apply(ev event.Event) {
	switch ev.Kind {
	case event.Connected:
		c.logger.Info("editor connected", "transport", ev.Transport.String(), "hostname", ev.Hostname)
		c.scheduler.RemoveAllPages()
		c.render(func(r display.Renderer) { r.RenderConnectedPlaceholder() })

	case event.Disconnected:
		if ev.Superseded {
			c.logger.Info("superseded session ended", "transport", ev.Transport.String())
			return
		}
		c.logger.Info("editor disconnected", "transport", ev.Transport.String())
		c.scheduler.RemoveAllPages()
		c.render(func(r display.Renderer) { r.RenderWaiting() })

	case event.ConnectionFailed:
		reason := ev.Reason
		c.logger.Warn("editor connection failed", "transport", ev.Transport.String(), "reason", reason)
		c.render(func(r display.Renderer) { r.RenderConnectionFailed(reason) })

	case event.FileTransfer:
		c.persist(ev.File)

	default:
		c.applyMessage(ev.Message)
	}
}

func (c *Core) applyMessage(m message.Message) {
	switch v := m.(type) {
	case *message.PageSetup:
		if !c.scheduler.UpdatePage(v) {
			c.scheduler.AddPage(display.PageFromSetup(v))
		}
	case *message.PageRemove:
		if !c.scheduler.RemovePage(v.ID) {
			c.logger.Debug("remove of unknown page", message.MsgInfo(v)...)
		}
	case *message.SensorSetup:
		if !c.scheduler.AddSensor(v.PageID, display.SensorFromSetup(v)) {
			c.logger.Warn("sensor for unknown page", message.MsgInfo(v)...)
		}
	case *message.SensorRemove:
		if !c.scheduler.RemoveSensor(v.ID, v.PageID) {
			c.logger.Debug("remove of unknown sensor", message.MsgInfo(v)...)
		}
	case *message.SensorTransform:
		if !c.scheduler.TransformSensor(v) {
			c.logger.Debug("transform of unknown sensor", message.MsgInfo(v)...)
		}
	case *message.SensorData:
		c.scheduler.UpdateSensorValue(v.ID, v.Value)
	default:
		c.logger.Debug("ignored event message", message.MsgInfo(m)...)
	}
}

func (c *Core) persist(f *event.File) {
	if f == nil {
		return
	}
	if c.files == nil {
		c.logger.Warn("no file store, dropping file", "file", f.Name, "size", len(f.Data))
		return
	}

	path, err := c.files.Persist(f.Data, f.Name, f.Kind)
	if err != nil {
		c.logger.Error("failed to persist file", "file", f.Name, "error", err)
		return
	}
	c.logger.Info("file stored", "file", f.Name, "path", path, "size", len(f.Data))
}

func (c *Core) render(fn func(r display.Renderer)) {
	r := c.renderer
	c.dispatcher.Post(func() { fn(r) })
}

// Disconnect ends the session of the active editor. The heartbeat idle counter
// stays paused until an editor connects again.
func (c *Core) Disconnect() error {
	p := c.arbiter.StopActive()
	if p == nil {
		return ErrNoActiveSession
	}
	c.logger.Info("disconnecting editor", "hostname", p.Hostname())
	p.Stop()
	if closer, ok := p.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Debug("close of stopped session failed", "error", err)
		}
	}

	return nil
}

// Hostname returns the hostname of the connected editor, empty without one.
func (c *Core) Hostname() string {
	return c.arbiter.Hostname()
}

// ListNetworks returns the wireless networks visible to the monitor.
func (c *Core) ListNetworks(ctx context.Context) ([]platform.WirelessNetwork, error) {
	return c.networks.ListAvailableNetworks(ctx)
}

// ConnectNetwork joins a wireless network.
func (c *Core) ConnectNetwork(ctx context.Context, ssid, password string) error {
	c.logger.Info("connecting to wireless network", "ssid", ssid)
	if err := c.networks.ConnectToNetwork(ctx, ssid, password); err != nil {
		c.logger.Warn("wireless connect failed", "ssid", ssid, "error", err)
		return err
	}

	return nil
}
