package message

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSerial(t *testing.T) {
	m := &SensorData{Header: hdr(), ID: 5, Value: 12.5}
	frame := EncodeSerial(m)
	require.Len(t, frame, SerialFrameSize)

	assert.Equal(t, Encode(m), frame[:Size])
	assert.Equal(t, uint64(crc32.ChecksumIEEE(frame[:Size])), binary.BigEndian.Uint64(frame[Size:]))
	// CRC-32 occupies the low four bytes of the trailer
	assert.Equal(t, []byte{0, 0, 0, 0}, frame[Size:Size+4])

	got, err := DecodeSerial(frame)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDecodeSerial_ChecksumMismatch(t *testing.T) {
	frame := EncodeSerial(&SensorData{Header: hdr(), ID: 5, Value: 12.5})

	// flipping any single bit of the body must be detected
	for i := 0; i < Size; i++ {
		for bit := 0; bit < 8; bit++ {
			corrupted := append([]byte(nil), frame...)
			corrupted[i] ^= 1 << bit

			m, err := DecodeSerial(corrupted)
			require.ErrorIs(t, err, ErrChecksumMismatch, "byte %d bit %d", i, bit)
			require.Nil(t, m)
		}
	}

	// a corrupted trailer is a mismatch as well
	corrupted := append([]byte(nil), frame...)
	corrupted[SerialFrameSize-1] ^= 0x01
	_, err := DecodeSerial(corrupted)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecodeSerial_ShortFrame(t *testing.T) {
	frame := EncodeSerial(&Heartbeat{Header: hdr()})
	_, err := DecodeSerial(frame[:Size])
	require.ErrorIs(t, err, ErrShortFrame)
	assert.False(t, VerifyChecksum(frame[:Size]))
}

func TestDecodeSerial_ValidChecksumUnknownType(t *testing.T) {
	body := make([]byte, Size)
	body[0] = 0xee
	frame := make([]byte, SerialFrameSize)
	copy(frame, body)
	binary.BigEndian.PutUint64(frame[Size:], Checksum(body))

	_, err := DecodeSerial(frame)
	require.ErrorIs(t, err, ErrUnknownType)
}
