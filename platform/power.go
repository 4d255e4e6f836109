package platform

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/afero"
)

// DisplayPower switches the physical display on and off.
type DisplayPower interface {
	SetDisplayPower(enabled bool) error
	DisplayEnabled() bool
}

// NoopPower remembers the requested state without touching any hardware.
type NoopPower struct {
	enabled atomic.Bool
}

var _ DisplayPower = (*NoopPower)(nil)

// NewNoopPower returns a NoopPower that reports the display as enabled.
func NewNoopPower() *NoopPower {
	p := &NoopPower{}
	p.enabled.Store(true)

	return p
}

func (p *NoopPower) SetDisplayPower(enabled bool) error {
	p.enabled.Store(enabled)
	return nil
}

func (p *NoopPower) DisplayEnabled() bool {
	return p.enabled.Load()
}

// DefaultBacklightDir is the sysfs backlight of the Raspberry Pi touch display.
const DefaultBacklightDir = "/sys/class/backlight/rpi_backlight"

// BacklightPower drives a Linux sysfs backlight through its bl_power attribute,
// where "0" means on and "1" means off.
type BacklightPower struct {
	fs   afero.Fs
	path string
}

var _ DisplayPower = (*BacklightPower)(nil)

// NewBacklightPower creates a BacklightPower for the backlight directory dir.
func NewBacklightPower(fs afero.Fs, dir string) *BacklightPower {
	if dir == "" {
		dir = DefaultBacklightDir
	}

	return &BacklightPower{fs: fs, path: filepath.Join(dir, "bl_power")}
}

// Available reports whether the backlight attribute exists.
func (p *BacklightPower) Available() bool {
	ok, err := afero.Exists(p.fs, p.path)
	return err == nil && ok
}

func (p *BacklightPower) SetDisplayPower(enabled bool) error {
	value := []byte("1")
	if enabled {
		value = []byte("0")
	}
	if err := afero.WriteFile(p.fs, p.path, value, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p.path, err)
	}

	return nil
}

// DisplayEnabled reads the backlight state. An unreadable attribute counts as enabled.
func (p *BacklightPower) DisplayEnabled() bool {
	data, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		return true
	}

	return string(bytes.TrimSpace(data)) == "0"
}
