package serial

import "errors"

var (
	// ErrNoPort is returned when no serial device path is configured.
	ErrNoPort = errors.New("serial: no port configured")

	// ErrFrameTimeout is returned when a started frame did not complete in time.
	ErrFrameTimeout = errors.New("serial: frame timeout")

	// ErrShortPayload is returned when a file payload stopped before its declared size.
	ErrShortPayload = errors.New("serial: short file payload")

	// ErrFileTooLarge is returned for file transfers above the configured maximum.
	ErrFileTooLarge = errors.New("serial: file too large")
)

const (
	// ReasonBadEditorData is reported when the line carries data other than a handshake.
	ReasonBadEditorData = "Bad editor data"
	// ReasonDifferentEditor rejects a handshake while another editor is bound.
	ReasonDifferentEditor = "already connected to a different editor"
)
