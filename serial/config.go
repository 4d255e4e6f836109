package serial

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	goserial "go.bug.st/serial"

	"github.com/hwmon/monitor/identity"
	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/message"
)

const (
	DefaultBaudRate = 9600
	// DefaultMaxFileSize bounds the raw payload of a file transfer.
	DefaultMaxFileSize = 8 << 20
)

// Config holds the serial transport settings.
type Config struct {
	path     string
	baudRate int
	parity   goserial.Parity
	stopBits goserial.StopBits

	// readTimeout is the port level timeout after which Read returns a short read.
	// Defaults to 100 milliseconds.
	readTimeout time.Duration
	// frameTimeout is how long the rest of a started frame may take to arrive.
	// Defaults to 2 seconds.
	frameTimeout time.Duration
	// silenceTimeout is the quiet period that ends resynchronisation after a bad frame.
	// Defaults to 200 milliseconds.
	silenceTimeout time.Duration
	// fileTimeout is the longest gap between two chunks of a file payload.
	// Defaults to 5 seconds.
	fileTimeout time.Duration
	maxFileSize uint32

	identity uuid.UUID
	version  message.Version
	logger   logger.Logger
}

// NewConfig creates a serial configuration for the port at path, 9600 baud 8E1 by default.
func NewConfig(path string, opts ...ConnOption) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrNoPort
	}

	cfg := &Config{
		path:           path,
		baudRate:       DefaultBaudRate,
		parity:         goserial.EvenParity,
		stopBits:       goserial.OneStopBit,
		readTimeout:    100 * time.Millisecond,
		frameTimeout:   2 * time.Second,
		silenceTimeout: 200 * time.Millisecond,
		fileTimeout:    5 * time.Second,
		maxFileSize:    DefaultMaxFileSize,
		version:        message.LocalVersion,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.identity == uuid.Nil {
		cfg.identity = identity.Get()
	}

	return cfg, nil
}

// Path returns the serial device path.
func (cfg *Config) Path() string { return cfg.path }

// Mode returns the line settings passed to the port factory.
func (cfg *Config) Mode() *goserial.Mode {
	return &goserial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   cfg.parity,
		StopBits: cfg.stopBits,
	}
}

// ConnOption configures a Config.
type ConnOption interface {
	apply(*Config) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (c *connOptFunc) apply(cfg *Config) error { return c.applyFunc(cfg) }

func newConnOptFunc(name string, f func(*Config) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

var (
	// ErrInvalidBaudRate is returned for a non-positive baud rate.
	ErrInvalidBaudRate = errors.New("invalid baud rate")
	// ErrInvalidTimeout is returned for durations outside the range documented by an option.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

func validDuration(val, lower, upper time.Duration) error {
	if val < lower || val > upper {
		return ErrInvalidTimeout
	}

	return nil
}

// WithBaudRate sets the line speed.
func WithBaudRate(rate int) ConnOption {
	return newConnOptFunc("WithBaudRate", func(cfg *Config) error {
		if rate <= 0 {
			return ErrInvalidBaudRate
		}
		cfg.baudRate = rate

		return nil
	})
}

// WithParity sets the parity mode.
func WithParity(parity goserial.Parity) ConnOption {
	return newConnOptFunc("WithParity", func(cfg *Config) error {
		cfg.parity = parity
		return nil
	})
}

// WithReadTimeout sets the port read timeout, between 10 milliseconds and 10 seconds.
// A zero timeout would block reads forever and is rejected.
func WithReadTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithReadTimeout", func(cfg *Config) error {
		if err := validDuration(val, 10*time.Millisecond, 10*time.Second); err != nil {
			return err
		}
		cfg.readTimeout = val

		return nil
	})
}

// WithFrameTimeout sets how long a started frame may take to complete, between 10 milliseconds and 60 seconds.
func WithFrameTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithFrameTimeout", func(cfg *Config) error {
		if err := validDuration(val, 10*time.Millisecond, 60*time.Second); err != nil {
			return err
		}
		cfg.frameTimeout = val

		return nil
	})
}

// WithSilenceTimeout sets the quiet period ending resynchronisation, between 10 milliseconds and 10 seconds.
func WithSilenceTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithSilenceTimeout", func(cfg *Config) error {
		if err := validDuration(val, 10*time.Millisecond, 10*time.Second); err != nil {
			return err
		}
		cfg.silenceTimeout = val

		return nil
	})
}

// WithFileTimeout sets the longest gap inside a file payload, between 10 milliseconds and 5 minutes.
func WithFileTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithFileTimeout", func(cfg *Config) error {
		if err := validDuration(val, 10*time.Millisecond, 5*time.Minute); err != nil {
			return err
		}
		cfg.fileTimeout = val

		return nil
	})
}

// WithMaxFileSize bounds the accepted file transfer size.
func WithMaxFileSize(size uint32) ConnOption {
	return newConnOptFunc("WithMaxFileSize", func(cfg *Config) error {
		if size == 0 {
			return errors.New("max file size is zero")
		}
		cfg.maxFileSize = size

		return nil
	})
}

// WithIdentity sets the UUID sent in every frame. Defaults to the process identity.
func WithIdentity(id uuid.UUID) ConnOption {
	return newConnOptFunc("WithIdentity", func(cfg *Config) error {
		cfg.identity = id
		return nil
	})
}

// WithVersion overrides the protocol version announced to editors.
func WithVersion(v message.Version) ConnOption {
	return newConnOptFunc("WithVersion", func(cfg *Config) error {
		cfg.version = v
		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *Config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
