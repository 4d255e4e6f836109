package display

import (
	"time"

	"github.com/hwmon/monitor/message"
)

// Sensor is a data widget placed on a page grid.
type Sensor struct {
	ID              uint8
	PageID          uint8
	Row             uint8
	Column          uint8
	RowSpan         uint8
	ColumnSpan      uint8
	Kind            message.SensorKind
	Skin            message.Skin
	Max             float32
	Threshold       float32
	AverageEnabled  bool
	AveragingPeriod time.Duration
	Title           string
	Colors          message.ElementColors
	Value           float32
}

// SensorFromSetup builds a sensor from a setup frame.
func SensorFromSetup(m *message.SensorSetup) *Sensor {
	return &Sensor{
		ID:              m.ID,
		PageID:          m.PageID,
		Row:             m.Row,
		Column:          m.Column,
		RowSpan:         m.RowSpan,
		ColumnSpan:      m.ColumnSpan,
		Kind:            m.Kind,
		Skin:            m.Skin,
		Max:             m.Max,
		Threshold:       m.Threshold,
		AverageEnabled:  m.AverageEnabled,
		AveragingPeriod: time.Duration(m.AveragingPeriod) * time.Millisecond,
		Title:           m.Title,
		Colors:          m.Colors.Masked(m.Skin),
		Value:           m.InitialValue,
	}
}

// Color returns the override for e and whether the sensor's skin supports it.
func (s *Sensor) Color(e message.Element) (message.Color, bool) {
	if !s.Skin.Supports(e) {
		return message.Color{}, false
	}

	return s.Colors[e], true
}

// overlaps reports whether the occupied cells of s and o intersect.
func (s *Sensor) overlaps(o *Sensor) bool {
	sRowEnd, sColEnd := int(s.Row)+int(s.RowSpan), int(s.Column)+int(s.ColumnSpan)
	oRowEnd, oColEnd := int(o.Row)+int(o.RowSpan), int(o.Column)+int(o.ColumnSpan)

	return int(s.Row) < oRowEnd && int(o.Row) < sRowEnd &&
		int(s.Column) < oColEnd && int(o.Column) < sColEnd
}

// Page is a timed grid of sensors.
type Page struct {
	ID                uint8
	Background        message.Color
	TitleColor        message.Color
	SubtitleColor     message.Color
	Rows              uint8
	Columns           uint8
	NextID            uint8
	Transition        message.Transition
	TransitionTime    time.Duration
	Duration          time.Duration
	Title             string
	TitleEnabled      bool
	TitleAlignment    message.Alignment
	Subtitle          string
	SubtitleEnabled   bool
	SubtitleAlignment message.Alignment

	// sensors in insertion order; placement is first come first served
	sensors []*Sensor
	placed  map[uint8]bool
}

// PageFromSetup builds an empty page from a setup frame.
func PageFromSetup(m *message.PageSetup) *Page {
	p := &Page{placed: make(map[uint8]bool)}
	p.apply(m)

	return p
}

func (p *Page) apply(m *message.PageSetup) {
	p.ID = m.ID
	p.Background = m.Background
	p.TitleColor = m.TitleColor
	p.SubtitleColor = m.SubtitleColor
	p.Rows = m.Rows
	p.Columns = m.Columns
	p.NextID = m.NextID
	p.Transition = m.Transition
	p.TransitionTime = time.Duration(m.TransitionTimeMs) * time.Millisecond
	p.Duration = time.Duration(m.DurationMs) * time.Millisecond
	p.Title = m.Title
	p.TitleEnabled = m.TitleEnabled
	p.TitleAlignment = m.TitleAlignment
	p.Subtitle = m.Subtitle
	p.SubtitleEnabled = m.SubtitleEnabled
	p.SubtitleAlignment = m.SubtitleAlignment
}

// Update replaces the page attributes in place, keeping its sensors.
// A changed grid may place or unplace sensors.
func (p *Page) Update(m *message.PageSetup) {
	p.apply(m)
	p.layout()
}

// Rotates reports whether the page hands over to another page after its duration.
func (p *Page) Rotates() bool {
	return p.Duration != 0 && p.NextID != p.ID
}

// AddSensor adds s to the page, replacing a sensor with the same id,
// and reports whether it could be placed on the grid. A sensor that falls
// outside the grid or overlaps an already placed sensor stays on the page unplaced.
func (p *Page) AddSensor(s *Sensor) bool {
	s.PageID = p.ID
	if i := p.indexOf(s.ID); i >= 0 {
		p.sensors[i] = s
	} else {
		p.sensors = append(p.sensors, s)
	}
	p.layout()

	return p.placed[s.ID]
}

// RemoveSensor removes the sensor and its placement.
func (p *Page) RemoveSensor(id uint8) bool {
	i := p.indexOf(id)
	if i < 0 {
		return false
	}
	p.sensors = append(p.sensors[:i], p.sensors[i+1:]...)
	p.layout()

	return true
}

// TransformSensor moves a sensor and reports whether the sensor exists.
func (p *Page) TransformSensor(id, row, column, rowSpan, columnSpan uint8) bool {
	i := p.indexOf(id)
	if i < 0 {
		return false
	}
	s := p.sensors[i]
	s.Row, s.Column, s.RowSpan, s.ColumnSpan = row, column, rowSpan, columnSpan
	p.layout()

	return true
}

// SetSensorValue updates the value of a sensor and reports whether it exists.
func (p *Page) SetSensorValue(id uint8, value float32) bool {
	i := p.indexOf(id)
	if i < 0 {
		return false
	}
	p.sensors[i].Value = value

	return true
}

// Sensor returns a copy of the sensor with the given id.
func (p *Page) Sensor(id uint8) (Sensor, bool) {
	i := p.indexOf(id)
	if i < 0 {
		return Sensor{}, false
	}

	return *p.sensors[i], true
}

// Sensors returns copies of all sensors in insertion order.
func (p *Page) Sensors() []Sensor {
	out := make([]Sensor, 0, len(p.sensors))
	for _, s := range p.sensors {
		out = append(out, *s)
	}

	return out
}

// IsPlaced reports whether the sensor occupies cells on the grid.
func (p *Page) IsPlaced(id uint8) bool {
	return p.placed[id]
}

// Placed returns copies of the sensors that occupy the grid.
func (p *Page) Placed() []Sensor {
	out := make([]Sensor, 0, len(p.placed))
	for _, s := range p.sensors {
		if p.placed[s.ID] {
			out = append(out, *s)
		}
	}

	return out
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p *Page) Clone() *Page {
	if p == nil {
		return nil
	}
	c := *p
	c.sensors = make([]*Sensor, len(p.sensors))
	for i, s := range p.sensors {
		cp := *s
		c.sensors[i] = &cp
	}
	c.placed = make(map[uint8]bool, len(p.placed))
	for id, ok := range p.placed {
		c.placed[id] = ok
	}

	return &c
}

func (p *Page) indexOf(id uint8) int {
	for i, s := range p.sensors {
		if s.ID == id {
			return i
		}
	}

	return -1
}

func (p *Page) layout() {
	if p.placed == nil {
		p.placed = make(map[uint8]bool, len(p.sensors))
	}
	clear(p.placed)

	var placed []*Sensor
	for _, s := range p.sensors {
		if !p.fits(s) {
			continue
		}
		free := true
		for _, o := range placed {
			if s.overlaps(o) {
				free = false
				break
			}
		}
		if free {
			placed = append(placed, s)
			p.placed[s.ID] = true
		}
	}
}

func (p *Page) fits(s *Sensor) bool {
	return s.RowSpan > 0 && s.ColumnSpan > 0 &&
		int(s.Row)+int(s.RowSpan) <= int(p.Rows) &&
		int(s.Column)+int(s.ColumnSpan) <= int(p.Columns)
}
