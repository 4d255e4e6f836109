// Package message implements the fixed-size binary frames exchanged between an editor and a monitor.
//
// Every frame is exactly Size bytes. Byte 0 carries the Type tag, bytes 1-16 the sender's
// process UUID, and the type-specific payload starts at PayloadOffset. Integers and floats are
// big-endian, colours are three RGB bytes, booleans are a single 0 or 1 byte and strings occupy
// fixed-width NUL padded regions.
//
// Frames sent over a serial line carry an additional 8-byte CRC-32 trailer, see EncodeSerial.
package message

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	// Size is the length of every encoded frame.
	Size = 128
	// ChecksumSize is the length of the serial checksum trailer.
	ChecksumSize = 8
	// SerialFrameSize is the length of a frame on the serial line.
	SerialFrameSize = Size + ChecksumSize
	// PayloadOffset is the offset of the first type specific field.
	PayloadOffset = 1 + 16

	// NameSize is the width of hostnames and titles.
	NameSize = 32
	// LongTextSize is the width of file names and rejection reasons.
	LongTextSize = 64
)

// System identifiers carried by discovery frames. They keep unrelated broadcast
// traffic on the discovery port from being answered.
const (
	EditorSystemID  uint64 = 0x4857_4544_4954_4f52 // "HWEDITOR"
	MonitorSystemID uint64 = 0x4857_4d4f_4e49_5452 // "HWMONITR"
)

// Well known ports shared with the editor.
const (
	SessionPort        = 8888
	DiscoveryPort      = 8889
	DiscoveryReplyPort = 8890
	HeartbeatPort      = 8891
)

// Type is the tag stored in byte 0 of every frame.
type Type byte

const (
	TypeConnectionRequest Type = iota + 1
	TypeConnectionResponse
	TypeVersionParity
	TypeVersionParityResponse
	TypePageSetup
	TypePageRemove
	TypeSensorSetup
	TypeSensorRemove
	TypeSensorTransform
	TypeSensorData
	TypeHeartbeat
	TypeDisconnect
	TypeBroadcast
	TypeBroadcastReply
	TypeFileTransfer
	TypeConfirmation
)

var typeNames = map[Type]string{
	TypeConnectionRequest:     "connection.request",
	TypeConnectionResponse:    "connection.response",
	TypeVersionParity:         "version.parity",
	TypeVersionParityResponse: "version.parity.response",
	TypePageSetup:             "page.setup",
	TypePageRemove:            "page.remove",
	TypeSensorSetup:           "sensor.setup",
	TypeSensorRemove:          "sensor.remove",
	TypeSensorTransform:       "sensor.transform",
	TypeSensorData:            "sensor.data",
	TypeHeartbeat:             "heartbeat",
	TypeDisconnect:            "disconnect",
	TypeBroadcast:             "broadcast",
	TypeBroadcastReply:        "broadcast.reply",
	TypeFileTransfer:          "file.transfer",
	TypeConfirmation:          "confirmation",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Valid reports whether t is a known tag.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// Message is implemented by every frame type of the protocol.
// The set of implementations is closed; Decode returns pointers to them.
type Message interface {
	// Type returns the tag written to byte 0.
	Type() Type
	// Sender returns the UUID of the process that produced the frame.
	Sender() uuid.UUID

	encode(w *writer)
}

// Header holds the fields common to all frames.
type Header struct {
	From uuid.UUID
}

// Sender returns the UUID of the sending process.
func (h Header) Sender() uuid.UUID { return h.From }

func (h *Header) setSender(id uuid.UUID) { h.From = id }

// Color is a 24-bit RGB colour.
type Color struct {
	R, G, B uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// IPv4 is a four byte IPv4 address as carried on the wire.
type IPv4 [4]byte

func (ip IPv4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}

// ConnectionRequest opens a network session.
type ConnectionRequest struct {
	Header
	Version  Version
	Force    bool
	Address  IPv4
	Hostname string
}

// ConnectionResponse answers a ConnectionRequest.
// Exactly one of Accepted, VersionMismatch or InUse is set by the monitor.
type ConnectionResponse struct {
	Header
	Version         Version
	Accepted        bool
	VersionMismatch bool
	InUse           bool
	// Hostname of the controlling editor when InUse is set.
	Hostname string
}

// VersionParity is the serial handshake request.
type VersionParity struct {
	Header
	Version Version
}

// VersionParityResponse answers a VersionParity frame.
type VersionParityResponse struct {
	Header
	Version  Version
	Accepted bool
	Reason   string
}

// Alignment of page titles.
type Alignment uint8

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// Transition selects the animation used when a page becomes visible.
// The value is interpreted by the renderer.
type Transition uint8

// PageSetup creates a page or replaces the attributes of an existing one.
type PageSetup struct {
	Header
	ID                uint8
	Background        Color
	TitleColor        Color
	SubtitleColor     Color
	Rows              uint8
	Columns           uint8
	NextID            uint8
	Transition        Transition
	TransitionTimeMs  uint32
	DurationMs        uint32
	Title             string
	TitleEnabled      bool
	TitleAlignment    Alignment
	Subtitle          string
	SubtitleEnabled   bool
	SubtitleAlignment Alignment
}

// PageRemove deletes a page and its sensors.
type PageRemove struct {
	Header
	ID uint8
}

// SensorKind identifies the data source of a sensor.
type SensorKind uint8

// SensorSetup creates or replaces a sensor on a page.
type SensorSetup struct {
	Header
	ID              uint8
	PageID          uint8
	Row             uint8
	Column          uint8
	Kind            SensorKind
	Skin            Skin
	Max             float32
	Threshold       float32
	AverageEnabled  bool
	AveragingPeriod uint32
	RowSpan         uint8
	ColumnSpan      uint8
	InitialValue    float32
	Title           string
	// Colors holds overrides for the elements the skin supports.
	// Entries for unsupported elements are never encoded.
	Colors ElementColors
}

// SensorRemove deletes a sensor from a page.
type SensorRemove struct {
	Header
	ID     uint8
	PageID uint8
}

// SensorTransform moves or resizes a placed sensor.
type SensorTransform struct {
	Header
	ID         uint8
	PageID     uint8
	Row        uint8
	Column     uint8
	RowSpan    uint8
	ColumnSpan uint8
}

// SensorData updates the value of a sensor.
type SensorData struct {
	Header
	ID    uint8
	Value float32
}

// Heartbeat is the periodic liveness frame.
type Heartbeat struct {
	Header
}

// Disconnect ends the session gracefully.
type Disconnect struct {
	Header
}

// Broadcast is the discovery probe sent by an editor.
type Broadcast struct {
	Header
	SystemID uint64
	// Address the reply is sent to.
	Address IPv4
}

// BroadcastReply announces a monitor to an editor.
type BroadcastReply struct {
	Header
	SystemID uint64
	Version  Version
	MAC      [6]byte
	Address  IPv4
	Hostname string
}

// FileKind classifies a transferred file.
type FileKind uint8

const (
	FileImage FileKind = iota + 1
	FileFont
)

// FileTransfer announces a raw payload of Size bytes that follows the frame.
type FileTransfer struct {
	Header
	Size uint32
	Kind FileKind
	Name string
}

// Confirmation acknowledges a serial frame.
type Confirmation struct {
	Header
	OK bool
}

func (ConnectionRequest) Type() Type     { return TypeConnectionRequest }
func (ConnectionResponse) Type() Type    { return TypeConnectionResponse }
func (VersionParity) Type() Type         { return TypeVersionParity }
func (VersionParityResponse) Type() Type { return TypeVersionParityResponse }
func (PageSetup) Type() Type             { return TypePageSetup }
func (PageRemove) Type() Type            { return TypePageRemove }
func (SensorSetup) Type() Type           { return TypeSensorSetup }
func (SensorRemove) Type() Type          { return TypeSensorRemove }
func (SensorTransform) Type() Type       { return TypeSensorTransform }
func (SensorData) Type() Type            { return TypeSensorData }
func (Heartbeat) Type() Type             { return TypeHeartbeat }
func (Disconnect) Type() Type            { return TypeDisconnect }
func (Broadcast) Type() Type             { return TypeBroadcast }
func (BroadcastReply) Type() Type        { return TypeBroadcastReply }
func (FileTransfer) Type() Type          { return TypeFileTransfer }
func (Confirmation) Type() Type          { return TypeConfirmation }

// MsgInfo returns structured logging key/values describing m, followed by keysAndValues.
func MsgInfo(m Message, keysAndValues ...any) []any {
	if m == nil {
		return keysAndValues
	}

	info := []any{"type", m.Type().String(), "sender", m.Sender().String()}
	switch v := m.(type) {
	case *PageSetup:
		info = append(info, "page_id", v.ID)
	case *PageRemove:
		info = append(info, "page_id", v.ID)
	case *SensorSetup:
		info = append(info, "sensor_id", v.ID, "page_id", v.PageID)
	case *SensorRemove:
		info = append(info, "sensor_id", v.ID, "page_id", v.PageID)
	case *SensorTransform:
		info = append(info, "sensor_id", v.ID, "page_id", v.PageID)
	case *SensorData:
		info = append(info, "sensor_id", v.ID)
	case *FileTransfer:
		info = append(info, "file", v.Name, "size", v.Size)
	case *ConnectionRequest:
		info = append(info, "hostname", v.Hostname, "version", v.Version.String(), "force", v.Force)
	}

	return append(info, keysAndValues...)
}
