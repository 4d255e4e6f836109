package display

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/message"
)

// recordingRenderer stores every renderer call as a short string.
type recordingRenderer struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingRenderer) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recordingRenderer) RenderPage(current, previous *Page) {
	if previous == nil {
		r.record("page %d", current.ID)
		return
	}
	r.record("page %d prev %d", current.ID, previous.ID)
}

func (r *recordingRenderer) RenderConnectedPlaceholder() { r.record("placeholder") }
func (r *recordingRenderer) RenderWaiting()              { r.record("waiting") }
func (r *recordingRenderer) RenderConnectionFailed(reason string) {
	r.record("failed %s", reason)
}

func (r *recordingRenderer) UpdateSensorValue(pageID, sensorID uint8, value float32) {
	r.record("value %d/%d=%g", pageID, sensorID, value)
}

func (r *recordingRenderer) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingRenderer) Last() string {
	calls := r.Calls()
	if len(calls) == 0 {
		return ""
	}
	return calls[len(calls)-1]
}

func quietLogger() logger.Logger {
	return logger.New(logger.WithOutput(io.Discard))
}

// startDispatcher runs d until the test ends.
func startDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func flush(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Flush(ctx))
}

func pageSetup(id, next uint8, duration time.Duration) *message.PageSetup {
	return &message.PageSetup{
		ID: id, NextID: next, Rows: 3, Columns: 3,
		DurationMs: uint32(duration / time.Millisecond), Title: fmt.Sprintf("page %d", id),
	}
}

func newPage(id, next uint8, duration time.Duration) *Page {
	return PageFromSetup(pageSetup(id, next, duration))
}

func newSensor(id, row, col, rowSpan, colSpan uint8) *Sensor {
	return &Sensor{ID: id, Row: row, Column: col, RowSpan: rowSpan, ColumnSpan: colSpan}
}
