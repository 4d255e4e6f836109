package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goserial "go.bug.st/serial"

	"github.com/hwmon/monitor/identity"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(" /dev/ttyUSB0 ")
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Path())
	assert.Equal(t, &goserial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   goserial.EvenParity,
		StopBits: goserial.OneStopBit,
	}, cfg.Mode())
	assert.Equal(t, 100*time.Millisecond, cfg.readTimeout)
	assert.EqualValues(t, DefaultMaxFileSize, cfg.maxFileSize)
	assert.Equal(t, identity.Get(), cfg.identity)
}

func TestNewConfig_Errors(t *testing.T) {
	_, err := NewConfig("")
	require.ErrorIs(t, err, ErrNoPort)

	tests := []struct {
		name string
		opt  ConnOption
		err  error
	}{
		{"baud", WithBaudRate(0), ErrInvalidBaudRate},
		{"zero read timeout", WithReadTimeout(0), ErrInvalidTimeout},
		{"frame", WithFrameTimeout(time.Hour), ErrInvalidTimeout},
		{"silence", WithSilenceTimeout(time.Microsecond), ErrInvalidTimeout},
		{"file", WithFileTimeout(time.Hour), ErrInvalidTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig("/dev/ttyS0", tt.opt)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	_, err = NewConfig("/dev/ttyS0", WithMaxFileSize(0))
	assert.Error(t, err)
	_, err = NewConfig("/dev/ttyS0", WithLogger(nil))
	assert.Error(t, err)
}

func TestNewConfig_Options(t *testing.T) {
	cfg, err := NewConfig("/dev/ttyS0", WithBaudRate(115200), WithParity(goserial.NoParity))
	require.NoError(t, err)

	mode := cfg.Mode()
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, goserial.NoParity, mode.Parity)
}
