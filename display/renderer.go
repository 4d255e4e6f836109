package display

import (
	"github.com/hwmon/monitor/logger"
)

// Renderer draws the monitor screen. All methods are called from the
// Dispatcher goroutine and receive snapshots they may keep.
type Renderer interface {
	// RenderPage shows current. previous is the page shown before it, or nil.
	RenderPage(current, previous *Page)
	// RenderConnectedPlaceholder shows the "connected, no pages yet" view.
	RenderConnectedPlaceholder()
	// RenderWaiting shows the idle view displayed while no editor is connected.
	RenderWaiting()
	// RenderConnectionFailed tells the user why an editor could not connect.
	RenderConnectionFailed(reason string)
	// UpdateSensorValue refreshes a single sensor of the visible page.
	UpdateSensorValue(pageID, sensorID uint8, value float32)
}

// LogRenderer is a headless Renderer that writes every screen change to a logger.
type LogRenderer struct {
	logger logger.Logger
}

var _ Renderer = (*LogRenderer)(nil)

// NewLogRenderer creates a LogRenderer.
func NewLogRenderer(l logger.Logger) *LogRenderer {
	return &LogRenderer{logger: l}
}

func (r *LogRenderer) RenderPage(current, previous *Page) {
	kv := []any{"page_id", current.ID, "title", current.Title, "placed_sensors", len(current.Placed())}
	if previous != nil {
		kv = append(kv, "previous_page_id", previous.ID)
	}
	r.logger.Info("render page", kv...)
}

func (r *LogRenderer) RenderConnectedPlaceholder() {
	r.logger.Info("render connected placeholder")
}

func (r *LogRenderer) RenderWaiting() {
	r.logger.Info("render waiting for editor")
}

func (r *LogRenderer) RenderConnectionFailed(reason string) {
	r.logger.Warn("render connection failed", "reason", reason)
}

func (r *LogRenderer) UpdateSensorValue(pageID, sensorID uint8, value float32) {
	r.logger.Debug("update sensor value", "page_id", pageID, "sensor_id", sensorID, "value", value)
}
