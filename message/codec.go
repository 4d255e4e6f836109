package message

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// writer fills a fixed frame sequentially. Writes past the end are discarded,
// so a layout bug can never grow a frame beyond Size.
type writer struct {
	buf []byte
	pos int
}

func (w *writer) putByte(b byte) {
	if w.pos < len(w.buf) {
		w.buf[w.pos] = b
	}
	w.pos++
}

func (w *writer) putBytes(p []byte) {
	for _, b := range p {
		w.putByte(b)
	}
}

func (w *writer) putBool(v bool) {
	if v {
		w.putByte(1)
	} else {
		w.putByte(0)
	}
}

func (w *writer) putUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.putBytes(tmp[:])
}

func (w *writer) putUint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.putBytes(tmp[:])
}

func (w *writer) putFloat32(v float32) {
	w.putUint32(math.Float32bits(v))
}

func (w *writer) putColor(c Color) {
	w.putBytes([]byte{c.R, c.G, c.B})
}

func (w *writer) putVersion(v Version) {
	w.putBytes([]byte{v.Major, v.Minor, v.Patch})
}

// putString writes s truncated to width and NUL padded.
func (w *writer) putString(s string, width int) {
	n := min(len(s), width)
	for i := 0; i < n; i++ {
		w.putByte(s[i])
	}
	for i := n; i < width; i++ {
		w.putByte(0)
	}
}

// reader consumes a frame sequentially. The first violation is sticky and
// every later read returns zero values.
type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...)
	}
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.buf) {
		r.fail("field at offset %d exceeds frame", r.pos)
		return nil
	}
	p := r.buf[r.pos : r.pos+n]
	r.pos += n

	return p
}

func (r *reader) u8() byte {
	p := r.next(1)
	if p == nil {
		return 0
	}

	return p[0]
}

func (r *reader) flag(field string) bool {
	at := r.pos
	switch b := r.u8(); b {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail("%s at offset %d is 0x%02x, want 0 or 1", field, at, b)
		return false
	}
}

func (r *reader) u32() uint32 {
	p := r.next(4)
	if p == nil {
		return 0
	}

	return binary.BigEndian.Uint32(p)
}

func (r *reader) u64() uint64 {
	p := r.next(8)
	if p == nil {
		return 0
	}

	return binary.BigEndian.Uint64(p)
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) color() Color {
	p := r.next(3)
	if p == nil {
		return Color{}
	}

	return Color{R: p[0], G: p[1], B: p[2]}
}

func (r *reader) version() Version {
	p := r.next(3)
	if p == nil {
		return Version{}
	}

	return Version{Major: p[0], Minor: p[1], Patch: p[2]}
}

func (r *reader) ipv4() (ip IPv4) {
	copy(ip[:], r.next(4))
	return ip
}

// string reads a fixed-width region up to the first NUL.
func (r *reader) text(width int) string {
	p := r.next(width)
	for i, b := range p {
		if b == 0 {
			return string(p[:i])
		}
	}

	return string(p)
}

func (r *reader) span(field string) uint8 {
	at := r.pos
	v := r.u8()
	if v == 0 && r.err == nil {
		r.fail("%s at offset %d is zero", field, at)
	}

	return v
}

// Encode serializes m into a new frame of exactly Size bytes.
func Encode(m Message) []byte {
	buf := make([]byte, Size)
	EncodeTo(buf, m)

	return buf
}

// EncodeTo serializes m into buf, which must hold at least Size bytes.
// Bytes of buf past the frame layout are zeroed.
func EncodeTo(buf []byte, m Message) {
	buf = buf[:Size]
	clear(buf)

	w := &writer{buf: buf}
	w.putByte(byte(m.Type()))
	id := m.Sender()
	w.putBytes(id[:])
	m.encode(w)
}

// Decode parses a frame. It fails closed: on any error the returned Message is nil.
//
// The returned value is a pointer to one of the frame structs of this package,
// for example *PageSetup.
func Decode(buf []byte) (Message, error) {
	if len(buf) < Size {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrShortFrame, len(buf), Size)
	}

	t := Type(buf[0])
	m := newMessage(t)
	if m == nil {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownType, buf[0])
	}

	r := &reader{buf: buf[:Size], pos: 1}
	id, _ := uuid.FromBytes(r.next(16))
	m.setSender(id)
	m.decode(r)
	if r.err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, r.err)
	}

	return m, nil
}

// Peek returns the type tag and sender of a frame without decoding its payload.
// ok is false when the buffer is shorter than the header or the tag is unknown.
// The sender is returned even for an unknown tag.
func Peek(buf []byte) (t Type, sender uuid.UUID, ok bool) {
	if len(buf) < PayloadOffset {
		return 0, uuid.Nil, false
	}
	t = Type(buf[0])
	sender, _ = uuid.FromBytes(buf[1:PayloadOffset])

	return t, sender, t.Valid()
}

type decodable interface {
	Message
	setSender(id uuid.UUID)
	decode(r *reader)
}

func newMessage(t Type) decodable {
	switch t {
	case TypeConnectionRequest:
		return &ConnectionRequest{}
	case TypeConnectionResponse:
		return &ConnectionResponse{}
	case TypeVersionParity:
		return &VersionParity{}
	case TypeVersionParityResponse:
		return &VersionParityResponse{}
	case TypePageSetup:
		return &PageSetup{}
	case TypePageRemove:
		return &PageRemove{}
	case TypeSensorSetup:
		return &SensorSetup{}
	case TypeSensorRemove:
		return &SensorRemove{}
	case TypeSensorTransform:
		return &SensorTransform{}
	case TypeSensorData:
		return &SensorData{}
	case TypeHeartbeat:
		return &Heartbeat{}
	case TypeDisconnect:
		return &Disconnect{}
	case TypeBroadcast:
		return &Broadcast{}
	case TypeBroadcastReply:
		return &BroadcastReply{}
	case TypeFileTransfer:
		return &FileTransfer{}
	case TypeConfirmation:
		return &Confirmation{}
	default:
		return nil
	}
}

func (m ConnectionRequest) encode(w *writer) {
	w.putVersion(m.Version)
	w.putBool(m.Force)
	w.putBytes(m.Address[:])
	w.putString(m.Hostname, NameSize)
}

func (m *ConnectionRequest) decode(r *reader) {
	m.Version = r.version()
	m.Force = r.flag("force")
	m.Address = r.ipv4()
	m.Hostname = r.text(NameSize)
}

func (m ConnectionResponse) encode(w *writer) {
	w.putVersion(m.Version)
	w.putBool(m.Accepted)
	w.putBool(m.VersionMismatch)
	w.putBool(m.InUse)
	w.putString(m.Hostname, NameSize)
}

func (m *ConnectionResponse) decode(r *reader) {
	m.Version = r.version()
	m.Accepted = r.flag("accepted")
	m.VersionMismatch = r.flag("version mismatch")
	m.InUse = r.flag("in use")
	m.Hostname = r.text(NameSize)
}

func (m VersionParity) encode(w *writer) {
	w.putVersion(m.Version)
}

func (m *VersionParity) decode(r *reader) {
	m.Version = r.version()
}

func (m VersionParityResponse) encode(w *writer) {
	w.putVersion(m.Version)
	w.putBool(m.Accepted)
	w.putString(m.Reason, LongTextSize)
}

func (m *VersionParityResponse) decode(r *reader) {
	m.Version = r.version()
	m.Accepted = r.flag("accepted")
	m.Reason = r.text(LongTextSize)
}

func (m PageSetup) encode(w *writer) {
	w.putByte(m.ID)
	w.putColor(m.Background)
	w.putColor(m.TitleColor)
	w.putColor(m.SubtitleColor)
	w.putByte(m.Rows)
	w.putByte(m.Columns)
	w.putByte(m.NextID)
	w.putByte(byte(m.Transition))
	w.putUint32(m.TransitionTimeMs)
	w.putUint32(m.DurationMs)
	w.putString(m.Title, NameSize)
	w.putBool(m.TitleEnabled)
	w.putByte(byte(m.TitleAlignment))
	w.putString(m.Subtitle, NameSize)
	w.putBool(m.SubtitleEnabled)
	w.putByte(byte(m.SubtitleAlignment))
}

func (m *PageSetup) decode(r *reader) {
	m.ID = r.u8()
	m.Background = r.color()
	m.TitleColor = r.color()
	m.SubtitleColor = r.color()
	m.Rows = r.span("rows")
	m.Columns = r.span("columns")
	m.NextID = r.u8()
	m.Transition = Transition(r.u8())
	m.TransitionTimeMs = r.u32()
	m.DurationMs = r.u32()
	m.Title = r.text(NameSize)
	m.TitleEnabled = r.flag("title enabled")
	m.TitleAlignment = Alignment(r.u8())
	m.Subtitle = r.text(NameSize)
	m.SubtitleEnabled = r.flag("subtitle enabled")
	m.SubtitleAlignment = Alignment(r.u8())
}

func (m PageRemove) encode(w *writer) {
	w.putByte(m.ID)
}

func (m *PageRemove) decode(r *reader) {
	m.ID = r.u8()
}

func (m SensorSetup) encode(w *writer) {
	w.putByte(m.ID)
	w.putByte(m.PageID)
	w.putByte(m.Row)
	w.putByte(m.Column)
	w.putByte(byte(m.Kind))
	w.putByte(byte(m.Skin))
	w.putFloat32(m.Max)
	w.putFloat32(m.Threshold)
	w.putBool(m.AverageEnabled)
	w.putUint32(m.AveragingPeriod)
	w.putByte(m.RowSpan)
	w.putByte(m.ColumnSpan)
	w.putFloat32(m.InitialValue)
	w.putString(m.Title, NameSize)
	for e := Element(0); e < ElementCount; e++ {
		if m.Skin.Supports(e) {
			w.putColor(m.Colors[e])
		} else {
			w.putColor(Color{})
		}
	}
}

func (m *SensorSetup) decode(r *reader) {
	m.ID = r.u8()
	m.PageID = r.u8()
	m.Row = r.u8()
	m.Column = r.u8()
	m.Kind = SensorKind(r.u8())
	at := r.pos
	m.Skin = Skin(r.u8())
	if !m.Skin.Valid() {
		r.fail("skin at offset %d is unknown (%d)", at, m.Skin)
	}
	m.Max = r.f32()
	m.Threshold = r.f32()
	m.AverageEnabled = r.flag("average enabled")
	m.AveragingPeriod = r.u32()
	m.RowSpan = r.span("row span")
	m.ColumnSpan = r.span("column span")
	m.InitialValue = r.f32()
	m.Title = r.text(NameSize)
	for e := Element(0); e < ElementCount; e++ {
		c := r.color()
		if m.Skin.Supports(e) {
			m.Colors[e] = c
		}
	}
}

func (m SensorRemove) encode(w *writer) {
	w.putByte(m.ID)
	w.putByte(m.PageID)
}

func (m *SensorRemove) decode(r *reader) {
	m.ID = r.u8()
	m.PageID = r.u8()
}

func (m SensorTransform) encode(w *writer) {
	w.putBytes([]byte{m.ID, m.PageID, m.Row, m.Column, m.RowSpan, m.ColumnSpan})
}

func (m *SensorTransform) decode(r *reader) {
	m.ID = r.u8()
	m.PageID = r.u8()
	m.Row = r.u8()
	m.Column = r.u8()
	m.RowSpan = r.span("row span")
	m.ColumnSpan = r.span("column span")
}

func (m SensorData) encode(w *writer) {
	w.putByte(m.ID)
	w.putFloat32(m.Value)
}

func (m *SensorData) decode(r *reader) {
	m.ID = r.u8()
	m.Value = r.f32()
}

func (Heartbeat) encode(*writer)   {}
func (*Heartbeat) decode(*reader)  {}
func (Disconnect) encode(*writer)  {}
func (*Disconnect) decode(*reader) {}

func (m Broadcast) encode(w *writer) {
	w.putUint64(m.SystemID)
	w.putBytes(m.Address[:])
}

func (m *Broadcast) decode(r *reader) {
	m.SystemID = r.u64()
	m.Address = r.ipv4()
}

func (m BroadcastReply) encode(w *writer) {
	w.putUint64(m.SystemID)
	w.putVersion(m.Version)
	w.putBytes(m.MAC[:])
	w.putBytes(m.Address[:])
	w.putString(m.Hostname, NameSize)
}

func (m *BroadcastReply) decode(r *reader) {
	m.SystemID = r.u64()
	m.Version = r.version()
	copy(m.MAC[:], r.next(6))
	m.Address = r.ipv4()
	m.Hostname = r.text(NameSize)
}

func (m FileTransfer) encode(w *writer) {
	w.putUint32(m.Size)
	w.putByte(byte(m.Kind))
	w.putString(m.Name, LongTextSize)
}

func (m *FileTransfer) decode(r *reader) {
	m.Size = r.u32()
	m.Kind = FileKind(r.u8())
	m.Name = r.text(LongTextSize)
}

func (m Confirmation) encode(w *writer) {
	w.putBool(m.OK)
}

func (m *Confirmation) decode(r *reader) {
	m.OK = r.flag("ok")
}
