package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/network"
	"github.com/hwmon/monitor/serial"
)

const sampleConfig = `
[log]
level = "debug"
file = "/var/log/hwmonitor.log"

[network]
heartbeat_interval = "500ms"
idle_threshold = "1m"
hostname = "desk-monitor"
advertise = true

[serial]
port = "/dev/ttyAMA0"
baud_rate = 115200

[metrics]
addr = ":9090"
`

func TestLoad(t *testing.T) {
	require := require.New(t)

	fs := afero.NewMemMapFs()
	require.NoError(afero.WriteFile(fs, "/etc/hwmonitor/config.toml", []byte(sampleConfig), 0o644))

	cfg, err := Load(fs, DefaultPath)
	require.NoError(err)

	require.Equal(logger.DebugLevel, cfg.LogLevel())
	require.Equal("/var/log/hwmonitor.log", cfg.Log.File)
	require.Equal(500*time.Millisecond, cfg.Network.HeartbeatInterval.Duration)
	require.Equal(time.Minute, cfg.Network.IdleThreshold.Duration)
	require.True(cfg.Network.Advertise)
	require.True(cfg.SerialMode())
	require.Equal(115200, cfg.Serial.BaudRate)
	require.Equal(":9090", cfg.Metrics.Addr)

	// untouched fields keep their defaults
	def := Default()
	require.Equal(def.Network.SessionPort, cfg.Network.SessionPort)
	require.Equal(def.Serial.ReadTimeout, cfg.Serial.ReadTimeout)
	require.Equal(def.Display, cfg.Display)
}

func TestLoad_Missing(t *testing.T) {
	fs := afero.NewMemMapFs()

	cfg, err := Load(fs, DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load(fs, "")
	require.NoError(t, err)
	assert.False(t, cfg.SerialMode())

	_, err = Load(fs, "/home/pi/monitor.toml")
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	fs := afero.NewMemMapFs()

	require.NoError(t, afero.WriteFile(fs, "/bad.toml", []byte("[network\n"), 0o644))
	_, err := Load(fs, "/bad.toml")
	assert.ErrorContains(t, err, "config parse failed")

	require.NoError(t, afero.WriteFile(fs, "/bad.toml", []byte(`[network]
heartbeat_interval = "soon"`), 0o644))
	_, err = Load(fs, "/bad.toml")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/bad.toml", []byte(`
[log]
level = "loud"
[network]
session_port = 70000
listen_host = "monitor.local"
`), 0o644))
	_, err = Load(fs, "/bad.toml")
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "log.level")
	assert.ErrorContains(t, err, "network.session_port")
	assert.ErrorContains(t, err, "network.listen_host")
}

func TestSave(t *testing.T) {
	fs := afero.NewMemMapFs()

	cfg := Default()
	cfg.Network.Hostname = "kitchen"
	cfg.Display.TickInterval = Duration{250 * time.Millisecond}
	require.NoError(t, Save(fs, "/cfg.toml", cfg))

	data, err := afero.ReadFile(fs, "/cfg.toml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "250ms")

	loaded, err := Load(fs, "/cfg.toml")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestOptions(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg.toml", []byte(sampleConfig), 0o644))
	cfg, err := Load(fs, "/cfg.toml")
	require.NoError(t, err)

	netCfg, err := network.NewConfig(cfg.NetworkOptions(logger.NewMockLogger())...)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, netCfg.HeartbeatInterval())
	assert.Equal(t, cfg.Network.SessionPort, netCfg.SessionPort())

	serialCfg, err := serial.NewConfig(cfg.Serial.Port, cfg.SerialOptions(nil)...)
	require.NoError(t, err)
	assert.Equal(t, 115200, serialCfg.Mode().BaudRate)
	assert.Equal(t, "/dev/ttyAMA0", serialCfg.Path())
}
