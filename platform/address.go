package platform

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// ErrNoAddress is returned when no usable IPv4 interface exists.
var ErrNoAddress = errors.New("platform: no usable IPv4 address")

// LocalAddress describes how editors can reach this monitor.
type LocalAddress struct {
	Interface string
	IP        net.IP
	MAC       net.HardwareAddr
	Hostname  string
}

// AddressResolver looks up the local address announced to editors.
type AddressResolver interface {
	LocalAddress() (LocalAddress, error)
}

// virtualInterfacePrefixes lists container and tunnel interfaces editors cannot reach.
var virtualInterfacePrefixes = []string{
	"docker", "br-", "veth", "virbr", "lxc", "lxd",
	"cni", "flannel", "cali", "tunl", "wg",
}

// PreferredInterfaces returns interfaces that are up, not loopback, multicast capable and not virtual.
func PreferredInterfaces() ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list network interfaces: %w", err)
	}

	return FilterInterfaces(all), nil
}

// FilterInterfaces applies the PreferredInterfaces rules to ifaces.
func FilterInterfaces(ifaces []net.Interface) []net.Interface {
	var preferred []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if isVirtualInterface(iface.Name) {
			continue
		}
		preferred = append(preferred, iface)
	}

	return preferred
}

func isVirtualInterface(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}

	return false
}

// SystemResolver resolves the address from the host's interfaces.
type SystemResolver struct{}

var _ AddressResolver = SystemResolver{}

// LocalAddress returns the first private IPv4 address of a preferred interface.
func (SystemResolver) LocalAddress() (LocalAddress, error) {
	ifaces, err := PreferredInterfaces()
	if err != nil {
		return LocalAddress{}, err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "monitor"
	}

	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if ip := pickIPv4(addrs); ip != nil {
			return LocalAddress{Interface: iface.Name, IP: ip, MAC: iface.HardwareAddr, Hostname: hostname}, nil
		}
	}

	return LocalAddress{}, ErrNoAddress
}

func pickIPv4(addrs []net.Addr) net.IP {
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || !ipnet.IP.IsPrivate() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4
		}
	}

	return nil
}

// StaticResolver returns a fixed address, for tests and manual configuration.
type StaticResolver LocalAddress

func (r StaticResolver) LocalAddress() (LocalAddress, error) {
	if r.IP == nil {
		return LocalAddress{}, ErrNoAddress
	}

	return LocalAddress(r), nil
}
