// Package config loads the monitor's TOML configuration file.
//
// Every field is optional; missing fields keep the values of Default. The loaded
// configuration is translated into the functional options of the network and serial
// packages, so component defaults and validation stay in one place.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/message"
	"github.com/hwmon/monitor/network"
	"github.com/hwmon/monitor/platform"
	"github.com/hwmon/monitor/serial"
)

// DefaultPath is where the monitor looks for its configuration file.
const DefaultPath = "/etc/hwmonitor/config.toml"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Duration is a time.Duration written as a string such as "1s" or "250ms".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v

	return nil
}

// Config is the root of the configuration file.
type Config struct {
	Log     Log     `toml:"log"`
	Network Network `toml:"network"`
	Serial  Serial  `toml:"serial"`
	Display Display `toml:"display"`
	Metrics Metrics `toml:"metrics"`
}

type Log struct {
	Level   string `toml:"level"`
	File    string `toml:"file"`
	Console bool   `toml:"console"`
}

type Network struct {
	ListenHost         string   `toml:"listen_host"`
	SessionPort        int      `toml:"session_port"`
	DiscoveryPort      int      `toml:"discovery_port"`
	DiscoveryReplyPort int      `toml:"discovery_reply_port"`
	HeartbeatPort      int      `toml:"heartbeat_port"`
	HeartbeatInterval  Duration `toml:"heartbeat_interval"`
	IdleThreshold      Duration `toml:"idle_threshold"`
	Hostname           string   `toml:"hostname"`
	Advertise          bool     `toml:"advertise"`
	InstanceName       string   `toml:"instance_name"`
}

// Serial selects the serial transport when Port is set.
type Serial struct {
	Port        string   `toml:"port"`
	BaudRate    int      `toml:"baud_rate"`
	ReadTimeout Duration `toml:"read_timeout"`
	MaxFileSize uint32   `toml:"max_file_size"`
}

type Display struct {
	TickInterval Duration `toml:"tick_interval"`
	// BacklightDir is the sysfs backlight used for display power. Empty disables power control.
	BacklightDir string `toml:"backlight_dir"`
	// FileDir receives transferred images and fonts.
	FileDir string `toml:"file_dir"`
}

type Metrics struct {
	// Addr serves Prometheus metrics when set, for example ":9090".
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: Log{Level: "info"},
		Network: Network{
			SessionPort:        message.SessionPort,
			DiscoveryPort:      message.DiscoveryPort,
			DiscoveryReplyPort: message.DiscoveryReplyPort,
			HeartbeatPort:      message.HeartbeatPort,
			HeartbeatInterval:  Duration{time.Second},
			IdleThreshold:      Duration{20 * time.Second},
		},
		Serial: Serial{
			BaudRate:    serial.DefaultBaudRate,
			ReadTimeout: Duration{100 * time.Millisecond},
			MaxFileSize: serial.DefaultMaxFileSize,
		},
		Display: Display{
			TickInterval: Duration{100 * time.Millisecond},
			BacklightDir: platform.DefaultBacklightDir,
			FileDir:      "/var/lib/hwmonitor",
		},
	}
}

// Load reads the file at path on fs over the defaults. A missing file at the
// default path is not an error; a missing file elsewhere is.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Save writes cfg to path on fs.
func Save(fs afero.Fs, path string, cfg Config) error {
	data, err := toml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("config marshal failed: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("config write failed (%s): %w", path, err)
	}

	return nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		fail("log.level %q", c.Log.Level)
	}

	n := c.Network
	if n.ListenHost != "" && net.ParseIP(strings.TrimSpace(n.ListenHost)) == nil {
		fail("network.listen_host %q is not an IP address", n.ListenHost)
	}
	for name, port := range map[string]int{
		"session_port":         n.SessionPort,
		"discovery_port":       n.DiscoveryPort,
		"discovery_reply_port": n.DiscoveryReplyPort,
		"heartbeat_port":       n.HeartbeatPort,
	} {
		if port < 1 || port > 65535 {
			fail("network.%s %d", name, port)
		}
	}
	if n.HeartbeatInterval.Duration <= 0 {
		fail("network.heartbeat_interval must be positive")
	}
	if n.IdleThreshold.Duration < 0 {
		fail("network.idle_threshold must not be negative")
	}

	if c.Serial.BaudRate <= 0 {
		fail("serial.baud_rate %d", c.Serial.BaudRate)
	}
	if c.Serial.ReadTimeout.Duration <= 0 {
		fail("serial.read_timeout must be positive")
	}
	if c.Display.TickInterval.Duration <= 0 {
		fail("display.tick_interval must be positive")
	}

	return errors.Join(errs...)
}

// SerialMode reports whether the serial transport is selected.
func (c Config) SerialMode() bool {
	return strings.TrimSpace(c.Serial.Port) != ""
}

// LogLevel returns the configured log level.
func (c Config) LogLevel() logger.LogLevel {
	level, _ := logger.ParseLevel(c.Log.Level)
	return level
}

// NetworkOptions translates the network section into network options.
func (c Config) NetworkOptions(l logger.Logger) []network.ConnOption {
	n := c.Network
	opts := []network.ConnOption{
		network.WithListenHost(n.ListenHost),
		network.WithPorts(n.SessionPort, n.DiscoveryPort, n.DiscoveryReplyPort, n.HeartbeatPort),
		network.WithHeartbeatInterval(n.HeartbeatInterval.Duration),
		network.WithIdleThreshold(n.IdleThreshold.Duration),
		network.WithAdvertise(n.Advertise, n.InstanceName),
	}
	if n.Hostname != "" {
		opts = append(opts, network.WithHostname(n.Hostname))
	}
	if l != nil {
		opts = append(opts, network.WithLogger(l))
	}

	return opts
}

// SerialOptions translates the serial section into serial options.
func (c Config) SerialOptions(l logger.Logger) []serial.ConnOption {
	opts := []serial.ConnOption{
		serial.WithBaudRate(c.Serial.BaudRate),
		serial.WithReadTimeout(c.Serial.ReadTimeout.Duration),
	}
	if c.Serial.MaxFileSize > 0 {
		opts = append(opts, serial.WithMaxFileSize(c.Serial.MaxFileSize))
	}
	if l != nil {
		opts = append(opts, serial.WithLogger(l))
	}

	return opts
}
