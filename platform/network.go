package platform

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by capabilities the current platform lacks.
var ErrUnsupported = errors.New("platform: unsupported")

// WirelessNetwork is a Wi-Fi network visible to the monitor.
type WirelessNetwork struct {
	SSID     string
	Signal   int
	Secured  bool
	Selected bool
}

// NetworkManager lists and joins wireless networks.
type NetworkManager interface {
	ListAvailableNetworks(ctx context.Context) ([]WirelessNetwork, error)
	ConnectToNetwork(ctx context.Context, ssid, password string) error
}

// NoopNetworkManager is used on platforms where the OS manages networking.
type NoopNetworkManager struct{}

var _ NetworkManager = NoopNetworkManager{}

func (NoopNetworkManager) ListAvailableNetworks(context.Context) ([]WirelessNetwork, error) {
	return nil, ErrUnsupported
}

func (NoopNetworkManager) ConnectToNetwork(context.Context, string, string) error {
	return ErrUnsupported
}
