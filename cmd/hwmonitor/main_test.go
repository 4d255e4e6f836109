package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hwmon/monitor/config"
)

func TestFlagsApply(t *testing.T) {
	cfg := config.Default()
	flags{serial: "/dev/ttyUSB0", logLevel: "debug", consoleLog: true, metricsAddr: ":9090"}.apply(&cfg)

	assert.True(t, cfg.SerialMode())
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Console)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Empty(t, cfg.Log.File)
	assert.NoError(t, cfg.Validate())
}

func TestFlagsApply_KeepsFileValues(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "warn"
	cfg.Metrics.Addr = ":9100"
	flags{}.apply(&cfg)

	assert.False(t, cfg.SerialMode())
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
}
