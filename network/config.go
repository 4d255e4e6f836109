package network

import (
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/hwmon/monitor/identity"
	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/message"
)

// Config holds the settings shared by the session server, heartbeat monitor and discovery responder.
type Config struct {
	// listenHost is the address the session listener and discovery socket bind to.
	// Defaults to all interfaces.
	listenHost string

	sessionPort        int
	discoveryPort      int
	discoveryReplyPort int
	heartbeatPort      int

	// acceptTimeout bounds each Accept call so the listener observes shutdown.
	// Defaults to 1 second.
	acceptTimeout time.Duration
	// writeTimeout bounds every frame written to a session.
	// Defaults to 5 seconds.
	writeTimeout time.Duration

	// heartbeatInterval is the period of the heartbeat monitor. Defaults to 1 second.
	heartbeatInterval time.Duration
	// heartbeatDialTimeout bounds the outbound heartbeat connection attempt. Defaults to 5 seconds.
	heartbeatDialTimeout time.Duration
	// idleThreshold is the time without an active session after which the display is switched off.
	// Defaults to 20 seconds.
	idleThreshold time.Duration

	// replyDialTimeout bounds the outbound discovery reply connection. Defaults to 2 seconds.
	replyDialTimeout time.Duration
	// replyInterval is the minimum time between two discovery replies to the same editor.
	// Defaults to 1 second with a burst of 3.
	replyInterval time.Duration
	replyBurst    int

	// advertise enables mDNS service advertising of the session port.
	advertise    bool
	instanceName string

	// hostname is announced in handshake responses and discovery replies.
	// Defaults to os.Hostname.
	hostname string

	identity uuid.UUID
	version  message.Version
	clock    clockwork.Clock
	logger   logger.Logger
}

// NewConfig creates a network configuration with the well known ports and the given options applied.
func NewConfig(opts ...ConnOption) (*Config, error) {
	cfg := &Config{
		sessionPort:          message.SessionPort,
		discoveryPort:        message.DiscoveryPort,
		discoveryReplyPort:   message.DiscoveryReplyPort,
		heartbeatPort:        message.HeartbeatPort,
		acceptTimeout:        1 * time.Second,
		writeTimeout:         5 * time.Second,
		heartbeatInterval:    1 * time.Second,
		heartbeatDialTimeout: 5 * time.Second,
		idleThreshold:        20 * time.Second,
		replyDialTimeout:     2 * time.Second,
		replyInterval:        1 * time.Second,
		replyBurst:           3,
		version:              message.LocalVersion,
		clock:                clockwork.NewRealClock(),
		logger:               logger.GetLogger(),
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

func (cfg *Config) Logger() logger.Logger   { return cfg.logger }
func (cfg *Config) Identity() uuid.UUID     { return cfg.identity }
func (cfg *Config) Version() message.Version { return cfg.version }
func (cfg *Config) SessionPort() int        { return cfg.sessionPort }
func (cfg *Config) HeartbeatInterval() time.Duration {
	return cfg.heartbeatInterval
}

func (cfg *Config) hostnameOrDefault() string {
	if cfg.hostname != "" {
		return cfg.hostname
	}
	name, err := os.Hostname()
	if err != nil {
		return "monitor"
	}

	return name
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
	// ErrInvalidPort is returned for ports outside [0, 65535]. Port 0 picks a free port.
	ErrInvalidPort = errors.New("invalid port, should be in range of [0, 65535]")
	// ErrInvalidTimeout is returned for durations outside the range documented by an option.
	ErrInvalidTimeout = errors.New("invalid timeout")
	// ErrInvalidHost is returned for a listen host that is neither empty nor an IP address.
	ErrInvalidHost = errors.New("invalid listen host")
)

func validPort(port int) error {
	if port < 0 || port > 65535 {
		return ErrInvalidPort
	}

	return nil
}

func validDuration(val, lower, upper time.Duration) error {
	if val < lower || val > upper {
		return ErrInvalidTimeout
	}

	return nil
}

// WithListenHost sets the local IP address to bind. An empty host binds all interfaces.
func WithListenHost(host string) ConnOption {
	return newConnOptFunc("WithListenHost", func(cfg *Config) error {
		host = strings.TrimSpace(host)
		if host != "" && net.ParseIP(host) == nil {
			return ErrInvalidHost
		}
		cfg.listenHost = host

		return nil
	})
}

// WithPorts overrides the well known session, discovery, discovery reply and heartbeat ports.
func WithPorts(session, discovery, discoveryReply, heartbeat int) ConnOption {
	return newConnOptFunc("WithPorts", func(cfg *Config) error {
		for _, p := range []int{session, discovery, discoveryReply, heartbeat} {
			if err := validPort(p); err != nil {
				return err
			}
		}
		cfg.sessionPort = session
		cfg.discoveryPort = discovery
		cfg.discoveryReplyPort = discoveryReply
		cfg.heartbeatPort = heartbeat

		return nil
	})
}

// WithAcceptTimeout sets the accept iteration timeout, between 10 milliseconds and 5 seconds.
func WithAcceptTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithAcceptTimeout", func(cfg *Config) error {
		if err := validDuration(val, 10*time.Millisecond, 5*time.Second); err != nil {
			return err
		}
		cfg.acceptTimeout = val

		return nil
	})
}

// WithWriteTimeout sets the frame write timeout, between 100 milliseconds and 60 seconds.
func WithWriteTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithWriteTimeout", func(cfg *Config) error {
		if err := validDuration(val, 100*time.Millisecond, 60*time.Second); err != nil {
			return err
		}
		cfg.writeTimeout = val

		return nil
	})
}

// WithHeartbeatInterval sets the heartbeat period, between 10 milliseconds and 60 seconds.
func WithHeartbeatInterval(val time.Duration) ConnOption {
	return newConnOptFunc("WithHeartbeatInterval", func(cfg *Config) error {
		if err := validDuration(val, 10*time.Millisecond, 60*time.Second); err != nil {
			return err
		}
		cfg.heartbeatInterval = val

		return nil
	})
}

// WithHeartbeatDialTimeout sets the heartbeat connect timeout, between 10 milliseconds and 30 seconds.
func WithHeartbeatDialTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithHeartbeatDialTimeout", func(cfg *Config) error {
		if err := validDuration(val, 10*time.Millisecond, 30*time.Second); err != nil {
			return err
		}
		cfg.heartbeatDialTimeout = val

		return nil
	})
}

// WithIdleThreshold sets how long the monitor waits without a controller before
// switching the display off. Zero disables display power control.
func WithIdleThreshold(val time.Duration) ConnOption {
	return newConnOptFunc("WithIdleThreshold", func(cfg *Config) error {
		if val < 0 {
			return ErrInvalidTimeout
		}
		cfg.idleThreshold = val

		return nil
	})
}

// WithReplyDialTimeout sets the discovery reply connect timeout, between 10 milliseconds and 30 seconds.
func WithReplyDialTimeout(val time.Duration) ConnOption {
	return newConnOptFunc("WithReplyDialTimeout", func(cfg *Config) error {
		if err := validDuration(val, 10*time.Millisecond, 30*time.Second); err != nil {
			return err
		}
		cfg.replyDialTimeout = val

		return nil
	})
}

// WithReplyRate limits discovery replies per editor address to one every interval,
// allowing bursts of burst replies. A zero interval disables the limit.
func WithReplyRate(interval time.Duration, burst int) ConnOption {
	return newConnOptFunc("WithReplyRate", func(cfg *Config) error {
		if interval < 0 || burst < 1 {
			return ErrInvalidTimeout
		}
		cfg.replyInterval = interval
		cfg.replyBurst = burst

		return nil
	})
}

// WithAdvertise enables mDNS advertising under instanceName, the hostname when empty.
func WithAdvertise(enable bool, instanceName string) ConnOption {
	return newConnOptFunc("WithAdvertise", func(cfg *Config) error {
		cfg.advertise = enable
		cfg.instanceName = instanceName

		return nil
	})
}

// WithHostname overrides the hostname announced to editors.
func WithHostname(name string) ConnOption {
	return newConnOptFunc("WithHostname", func(cfg *Config) error {
		cfg.hostname = strings.TrimSpace(name)
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

// WithClock sets the clock driving heartbeat timing.
func WithClock(clock clockwork.Clock) ConnOption {
	return newConnOptFunc("WithClock", func(cfg *Config) error {
		if clock == nil {
			return errors.New("clock is nil")
		}
		cfg.clock = clock

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
