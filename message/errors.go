package message

import "errors"

var (
	// ErrShortFrame indicates that fewer bytes than a full frame were supplied.
	ErrShortFrame = errors.New("message: short frame")

	// ErrUnknownType indicates that byte 0 holds no known type tag.
	ErrUnknownType = errors.New("message: unknown type tag")

	// ErrMalformed indicates a structurally invalid field, such as a boolean
	// byte that is neither 0 nor 1 or a zero grid span.
	ErrMalformed = errors.New("message: malformed field")

	// ErrChecksumMismatch indicates that the serial checksum trailer does not match the frame body.
	ErrChecksumMismatch = errors.New("message: checksum mismatch")
)
