package network

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/platform"
)

// ServiceType is the DNS-SD service type of the session port.
const ServiceType = "_hwmonitor._tcp"

// retryInterval is the delay between mDNS registration attempts while no
// interface is ready, which is common right after boot.
const retryInterval = 5 * time.Second

// Advertiser publishes the session port over mDNS so editors on networks that
// filter broadcasts can still find the monitor.
type Advertiser struct {
	cfg    *Config
	logger logger.Logger

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an Advertiser.
func NewAdvertiser(cfg *Config) *Advertiser {
	return &Advertiser{cfg: cfg, logger: cfg.logger.With("component", "mdns")}
}

// InstanceName returns the advertised instance name.
func (a *Advertiser) InstanceName() string {
	if a.cfg.instanceName != "" {
		return a.cfg.instanceName
	}

	return a.cfg.hostnameOrDefault()
}

// TXTRecords returns the TXT records announced with the service.
func (a *Advertiser) TXTRecords() []string {
	return []string{
		"version=" + a.cfg.version.String(),
		"uuid=" + a.cfg.identity.String(),
	}
}

// Run registers the service for the port of addr, falling back to the configured
// session port, and keeps it registered until ctx is cancelled.
func (a *Advertiser) Run(ctx context.Context, addr net.Addr) error {
	port := a.cfg.sessionPort
	if tcpAddr, ok := addr.(*net.TCPAddr); ok && tcpAddr.Port != 0 {
		port = tcpAddr.Port
	}

	if !a.tryRegister(port) {
		a.logger.Info("mDNS registration failed, retrying", "retry_interval", retryInterval)

		ticker := a.cfg.clock.NewTicker(retryInterval)
	retry:
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return nil
			case <-ticker.Chan():
				if a.tryRegister(port) {
					break retry
				}
			}
		}
		ticker.Stop()
	}

	<-ctx.Done()
	a.Stop()

	return nil
}

func (a *Advertiser) tryRegister(port int) bool {
	ifaces, err := platform.PreferredInterfaces()
	if err != nil {
		a.logger.Debug("failed to get network interfaces", "error", err)
		return false
	}
	if len(ifaces) == 0 {
		a.logger.Debug("no suitable network interfaces found for mDNS")
		return false
	}

	server, err := zeroconf.Register(a.InstanceName(), ServiceType, "local.", port, a.TXTRecords(), ifaces)
	if err != nil {
		a.logger.Debug("mDNS registration attempt failed", "error", err)
		return false
	}

	a.mu.Lock()
	a.server = server
	a.mu.Unlock()

	a.logger.Info("mDNS service advertising started", "instance", a.InstanceName(), "port", port, "type", ServiceType)

	return true
}

// Stop withdraws the service, sending goodbye packets.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
