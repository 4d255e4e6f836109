package display

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwmon/monitor/message"
)

func TestPage_Placement(t *testing.T) {
	tests := []struct {
		name   string
		first  *Sensor
		second *Sensor
		placed bool
	}{
		{"disjoint columns", newSensor(1, 0, 0, 1, 1), newSensor(2, 0, 1, 1, 1), true},
		{"disjoint rows", newSensor(1, 0, 0, 1, 3), newSensor(2, 1, 0, 2, 3), true},
		{"same cell", newSensor(1, 1, 1, 1, 1), newSensor(2, 1, 1, 1, 1), false},
		{"partial overlap", newSensor(1, 0, 0, 2, 2), newSensor(2, 1, 1, 2, 2), false},
		{"contained", newSensor(1, 0, 0, 3, 3), newSensor(2, 1, 1, 1, 1), false},
		{"containing", newSensor(1, 1, 1, 1, 1), newSensor(2, 0, 0, 3, 3), false},
		{"touching edge", newSensor(1, 0, 0, 2, 1), newSensor(2, 0, 1, 2, 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPage(1, 1, 0)
			require.True(t, p.AddSensor(tt.first))
			assert.Equal(t, tt.placed, p.AddSensor(tt.second))

			// an unplaced sensor still belongs to the page
			assert.Len(t, p.Sensors(), 2)
			assert.True(t, p.IsPlaced(tt.first.ID))
			assert.Equal(t, tt.placed, p.IsPlaced(tt.second.ID))
		})
	}
}

func TestPage_OutsideGrid(t *testing.T) {
	p := newPage(1, 1, 0)
	assert.False(t, p.AddSensor(newSensor(1, 2, 2, 2, 1)))
	assert.False(t, p.AddSensor(newSensor(2, 3, 0, 1, 1)))
	assert.True(t, p.AddSensor(newSensor(3, 2, 2, 1, 1)))
	assert.Len(t, p.Placed(), 1)
}

func TestPage_RemoveAndTransformRelayout(t *testing.T) {
	p := newPage(1, 1, 0)
	require.True(t, p.AddSensor(newSensor(1, 0, 0, 2, 2)))
	require.False(t, p.AddSensor(newSensor(2, 1, 1, 1, 1)))

	// removing the blocker places the waiting sensor
	require.True(t, p.RemoveSensor(1))
	assert.True(t, p.IsPlaced(2))
	assert.False(t, p.RemoveSensor(1))

	require.True(t, p.AddSensor(newSensor(3, 0, 0, 1, 1)))
	// moving 3 onto 2 unplaces it, moving it away places it again
	require.True(t, p.TransformSensor(3, 1, 1, 1, 1))
	assert.False(t, p.IsPlaced(3))
	require.True(t, p.TransformSensor(3, 2, 2, 1, 1))
	assert.True(t, p.IsPlaced(3))
	assert.False(t, p.TransformSensor(9, 0, 0, 1, 1))
}

func TestPage_UpdateKeepsSensors(t *testing.T) {
	p := newPage(1, 2, time.Second)
	require.True(t, p.AddSensor(newSensor(1, 2, 2, 1, 1)))

	setup := pageSetup(1, 3, 2*time.Second)
	setup.Rows, setup.Columns = 2, 2
	p.Update(setup)

	assert.Equal(t, uint8(3), p.NextID)
	assert.Equal(t, 2*time.Second, p.Duration)
	assert.Len(t, p.Sensors(), 1)
	// the shrunken grid no longer holds the sensor
	assert.False(t, p.IsPlaced(1))
}

func TestPage_SensorValueAndClone(t *testing.T) {
	p := newPage(4, 4, 0)
	p.AddSensor(newSensor(1, 0, 0, 1, 1))

	clone := p.Clone()
	require.True(t, p.SetSensorValue(1, 42))
	assert.False(t, p.SetSensorValue(2, 1))

	s, ok := p.Sensor(1)
	require.True(t, ok)
	assert.Equal(t, float32(42), s.Value)
	assert.Equal(t, uint8(4), s.PageID)

	cs, _ := clone.Sensor(1)
	assert.Zero(t, cs.Value)
	assert.Nil(t, (*Page)(nil).Clone())
}

func TestSensorFromSetup(t *testing.T) {
	var colors message.ElementColors
	colors[message.ElementNeedle] = message.Color{R: 1}
	colors[message.ElementTitle] = message.Color{G: 2}

	s := SensorFromSetup(&message.SensorSetup{
		ID: 3, PageID: 7, Row: 1, Column: 2, RowSpan: 1, ColumnSpan: 2, Skin: message.SkinDigital,
		AveragingPeriod: 1500, InitialValue: 9.5, Colors: colors,
	})

	assert.Equal(t, float32(9.5), s.Value)
	assert.Equal(t, 1500*time.Millisecond, s.AveragingPeriod)
	_, ok := s.Color(message.ElementNeedle)
	assert.False(t, ok, "digital skin has no needle")
	c, ok := s.Color(message.ElementTitle)
	assert.True(t, ok)
	assert.Equal(t, message.Color{G: 2}, c)
}
