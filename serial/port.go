package serial

import (
	"fmt"
	"io"
	"time"

	goserial "go.bug.st/serial"
)

// Port is the subset of a serial port used by the transport.
// Read returns 0 bytes and a nil error when the read timeout expires.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// PortFactory opens a serial port.
type PortFactory func(path string, mode *goserial.Mode) (Port, error)

// DefaultPortFactory opens real serial ports through go.bug.st/serial.
func DefaultPortFactory(path string, mode *goserial.Mode) (Port, error) {
	port, err := goserial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	return port, nil
}

// ListPorts returns the names of the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := goserial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	return ports, nil
}
