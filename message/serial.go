package message

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Checksum returns the CRC-32 (IEEE) of a frame body, widened to the 8-byte trailer.
func Checksum(body []byte) uint64 {
	return uint64(crc32.ChecksumIEEE(body))
}

// VerifyChecksum reports whether a serial frame's trailer matches its body.
func VerifyChecksum(frame []byte) bool {
	if len(frame) < SerialFrameSize {
		return false
	}

	return binary.BigEndian.Uint64(frame[Size:SerialFrameSize]) == Checksum(frame[:Size])
}

// EncodeSerial serializes m and appends the checksum trailer.
func EncodeSerial(m Message) []byte {
	frame := make([]byte, SerialFrameSize)
	EncodeTo(frame, m)
	binary.BigEndian.PutUint64(frame[Size:], Checksum(frame[:Size]))

	return frame
}

// DecodeSerial verifies the checksum trailer of frame and decodes the body.
// A checksum mismatch is reported as ErrChecksumMismatch before the body is inspected.
func DecodeSerial(frame []byte) (Message, error) {
	if len(frame) < SerialFrameSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrShortFrame, len(frame), SerialFrameSize)
	}
	if !VerifyChecksum(frame) {
		return nil, fmt.Errorf("%w: got 0x%016x, want 0x%016x", ErrChecksumMismatch,
			binary.BigEndian.Uint64(frame[Size:SerialFrameSize]), Checksum(frame[:Size]))
	}

	return Decode(frame[:Size])
}
