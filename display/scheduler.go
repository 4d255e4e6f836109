// Package display keeps the pages received from an editor and decides which one is visible.
//
// The Scheduler owns the page set and a two step rotation state (current and previous page).
// A 100 ms tick advances the current page along its next-page link once its duration elapsed.
// Every visible change is posted to the Dispatcher, which calls the Renderer with snapshots.
package display

import (
	"context"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hwmon/monitor/internal/syncutil"
	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/message"
)

// DefaultTickInterval is the resolution of page rotation.
const DefaultTickInterval = 100 * time.Millisecond

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock sets the clock used for view timestamps and the tick loop.
func WithClock(clock clockwork.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = clock }
}

// WithTickInterval overrides DefaultTickInterval.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l logger.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// Scheduler maintains the page set and the rotation state.
//
// Invariant: current and previous are both nil when there are no pages,
// otherwise current is non-nil and present in pages.
type Scheduler struct {
	mu           syncutil.Mutex
	pages        map[uint8]*Page
	current      *Page
	previous     *Page
	viewStart    time.Time
	clock        clockwork.Clock
	tickInterval time.Duration
	renderer     Renderer
	dispatcher   *Dispatcher
	logger       logger.Logger
}

// NewScheduler creates an empty Scheduler rendering through r on dispatcher d.
func NewScheduler(r Renderer, d *Dispatcher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		pages:        make(map[uint8]*Page),
		clock:        clockwork.NewRealClock(),
		tickInterval: DefaultTickInterval,
		renderer:     r,
		dispatcher:   d,
		logger:       logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// AddPage adds p, or updates the page with the same id in place.
// The first page ever added becomes current immediately.
func (s *Scheduler) AddPage(p *Page) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pages[p.ID]; ok {
		s.updateLocked(existing, p)
		return
	}

	s.pages[p.ID] = p
	if s.current == nil {
		s.current = p
		s.previous = nil
		s.viewStart = s.clock.Now()
		s.renderCurrentLocked()
	}
}

// UpdatePage applies a setup frame to an existing page and reports whether the page exists.
func (s *Scheduler) UpdatePage(m *message.PageSetup) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[m.ID]
	if !ok {
		return false
	}
	p.Update(m)
	if p == s.current {
		s.renderCurrentLocked()
	}

	return true
}

func (s *Scheduler) updateLocked(existing, p *Page) {
	for _, sensor := range existing.Sensors() {
		p.AddSensor(&sensor)
	}
	s.pages[p.ID] = p
	if s.current == existing {
		s.current = p
		s.renderCurrentLocked()
	}
	if s.previous == existing {
		s.previous = p
	}
}

// RemovePage deletes a page and reports whether it existed.
//
// Removing the current page falls back to the previous page, then to any remaining
// page, and finally to the connected placeholder when no page is left.
func (s *Scheduler) RemovePage(id uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[id]
	if !ok {
		return false
	}
	delete(s.pages, id)

	if s.previous == p {
		s.previous = nil
	}
	if s.current != p {
		return true
	}

	switch {
	case len(s.pages) == 0:
		s.current = nil
		s.previous = nil
		s.post(func(r Renderer) { r.RenderConnectedPlaceholder() })
	case s.previous != nil:
		s.current = s.previous
		s.previous = nil
		s.viewStart = s.clock.Now()
		s.renderCurrentLocked()
	default:
		s.current = s.pages[s.lowestIDLocked()]
		s.viewStart = s.clock.Now()
		s.renderCurrentLocked()
	}

	return true
}

// RemoveAllPages forgets every page without rendering.
func (s *Scheduler) RemoveAllPages() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.pages)
	s.current = nil
	s.previous = nil
}

// HasPage reports whether a page with the given id exists.
func (s *Scheduler) HasPage(id uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.pages[id]
	return ok
}

// PageCount returns the number of pages.
func (s *Scheduler) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pages)
}

// Page returns a snapshot of the page with the given id.
func (s *Scheduler) Page(id uint8) (*Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[id]
	return p.Clone(), ok
}

// Current returns a snapshot of the visible page, nil when there is none.
func (s *Scheduler) Current() *Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current.Clone()
}

// Previous returns a snapshot of the page shown before the current one.
func (s *Scheduler) Previous() *Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.previous.Clone()
}

// AddSensor adds a sensor to its page. It reports whether the page exists.
func (s *Scheduler) AddSensor(pageID uint8, sensor *Sensor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[pageID]
	if !ok {
		return false
	}
	if !p.AddSensor(sensor) {
		s.logger.Debug("sensor not placed", "page_id", pageID, "sensor_id", sensor.ID,
			"row", sensor.Row, "column", sensor.Column, "row_span", sensor.RowSpan, "column_span", sensor.ColumnSpan)
	}
	if p == s.current {
		s.renderCurrentLocked()
	}

	return true
}

// RemoveSensor removes a sensor from its page and reports whether it existed.
func (s *Scheduler) RemoveSensor(sensorID, pageID uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[pageID]
	if !ok || !p.RemoveSensor(sensorID) {
		return false
	}
	if p == s.current {
		s.renderCurrentLocked()
	}

	return true
}

// TransformSensor repositions a sensor and reports whether it exists.
func (s *Scheduler) TransformSensor(m *message.SensorTransform) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[m.PageID]
	if !ok || !p.TransformSensor(m.ID, m.Row, m.Column, m.RowSpan, m.ColumnSpan) {
		return false
	}
	if p == s.current {
		s.renderCurrentLocked()
	}

	return true
}

// UpdateSensorValue sets the value of every sensor with the given id and
// reports whether any was found. Sensor data frames carry no page id.
func (s *Scheduler) UpdateSensorValue(sensorID uint8, value float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, p := range s.pages {
		if !p.SetSensorValue(sensorID, value) {
			continue
		}
		found = true
		if p == s.current {
			pageID := p.ID
			s.post(func(r Renderer) { r.UpdateSensorValue(pageID, sensorID, value) })
		}
	}

	return found
}

// Tick advances the rotation if the current page's duration elapsed at now.
// It reports whether the visible page changed.
func (s *Scheduler) Tick(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current
	if cur == nil || !cur.Rotates() || now.Sub(s.viewStart) < cur.Duration {
		return false
	}
	next, ok := s.pages[cur.NextID]
	if !ok {
		return false
	}

	s.previous = cur
	s.current = next
	s.viewStart = now
	s.renderCurrentLocked()

	return true
}

// Run ticks the rotation until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.Chan():
			s.Tick(now)
		}
	}
}

func (s *Scheduler) renderCurrentLocked() {
	cur := s.current.Clone()
	prev := s.previous.Clone()
	s.post(func(r Renderer) { r.RenderPage(cur, prev) })
}

func (s *Scheduler) post(fn func(r Renderer)) {
	r := s.renderer
	s.dispatcher.Post(func() { fn(r) })
}

func (s *Scheduler) lowestIDLocked() uint8 {
	ids := make([]uint8, 0, len(s.pages))
	for id := range s.pages {
		ids = append(ids, id)
	}

	return slices.Min(ids)
}
