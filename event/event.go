// Package event defines the typed events a transport session emits towards the application core.
package event

import (
	"fmt"

	"github.com/hwmon/monitor/message"
)

// Kind enumerates the events emitted by sessions.
type Kind uint8

const (
	// Connected is emitted once a handshake was accepted.
	Connected Kind = iota + 1
	// Disconnected is emitted exactly once for every accepted session when it ends.
	Disconnected
	// ConnectionFailed is emitted when a peer sent data that could not start a session.
	ConnectionFailed
	PageSetup
	PageRemove
	SensorSetup
	SensorRemove
	SensorTransform
	SensorData
	// FileTransfer carries a completely received raw file.
	FileTransfer
)

var kindNames = map[Kind]string{
	Connected:        "connected",
	Disconnected:     "disconnected",
	ConnectionFailed: "connection_failed",
	PageSetup:        "page_setup",
	PageRemove:       "page_remove",
	SensorSetup:      "sensor_setup",
	SensorRemove:     "sensor_remove",
	SensorTransform:  "sensor_transform",
	SensorData:       "sensor_data",
	FileTransfer:     "file_transfer",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Transport identifies the link an event arrived on.
type Transport uint8

const (
	Network Transport = iota + 1
	Serial
)

func (t Transport) String() string {
	switch t {
	case Network:
		return "network"
	case Serial:
		return "serial"
	default:
		return "unknown"
	}
}

// File is a raw payload received through a file transfer.
type File struct {
	Name string
	Kind message.FileKind
	Data []byte
}

// Event is a single notification from a session.
type Event struct {
	Kind      Kind
	Transport Transport
	// Hostname of the peer for Connected, empty for serial peers.
	Hostname string
	// Reason describes a ConnectionFailed event.
	Reason string
	// Superseded is set on Disconnected when a forced handshake of another peer
	// already took over, so the page model belongs to the new controller.
	Superseded bool
	// Message is the decoded frame for page and sensor events.
	Message message.Message
	// File is set for FileTransfer events.
	File *File
}

// FromMessage maps a post-handshake frame to its event.
// ok is false for frames that are not forwarded to the application.
func FromMessage(tr Transport, m message.Message) (ev Event, ok bool) {
	var kind Kind
	switch m.(type) {
	case *message.PageSetup:
		kind = PageSetup
	case *message.PageRemove:
		kind = PageRemove
	case *message.SensorSetup:
		kind = SensorSetup
	case *message.SensorRemove:
		kind = SensorRemove
	case *message.SensorTransform:
		kind = SensorTransform
	case *message.SensorData:
		kind = SensorData
	default:
		return Event{}, false
	}

	return Event{Kind: kind, Transport: tr, Message: m}, true
}

// Handler receives session events. Implementations must not block for long;
// sessions call Handle on their reader goroutine.
type Handler interface {
	Handle(ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ev Event)

func (f HandlerFunc) Handle(ev Event) { f(ev) }

// Discard drops every event.
var Discard Handler = HandlerFunc(func(Event) {})

// Chan forwards events into a channel. Handle blocks while the channel is full.
type Chan chan Event

func (c Chan) Handle(ev Event) { c <- ev }

// Multi fans an event out to several handlers in order.
func Multi(handlers ...Handler) Handler {
	return HandlerFunc(func(ev Event) {
		for _, h := range handlers {
			h.Handle(ev)
		}
	})
}
