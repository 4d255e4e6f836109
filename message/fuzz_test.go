package message

import (
	"testing"
)

// FuzzDecode feeds arbitrary frames to the decoder.
// Decode must never panic, and every successful decode must re-encode to a
// frame that decodes to the same message.
func FuzzDecode(f *testing.F) {
	for _, m := range sampleMessages() {
		f.Add(Encode(m))
	}
	f.Add([]byte{})
	f.Add([]byte{byte(TypeHeartbeat)})
	f.Add(make([]byte, Size))

	f.Fuzz(func(t *testing.T, data []byte) {
		m, err := Decode(data)
		if err != nil {
			if m != nil {
				t.Fatalf("partial message returned with error %v", err)
			}
			return
		}

		again, err := Decode(Encode(m))
		if err != nil {
			t.Fatalf("re-decode failed: %v", err)
		}
		if again.Type() != m.Type() || again.Sender() != m.Sender() {
			t.Fatalf("re-decode changed header: %v vs %v", m, again)
		}
	})
}

// FuzzDecodeSerial checks that the serial decoder never panics and only
// accepts frames whose trailer matches.
func FuzzDecodeSerial(f *testing.F) {
	for _, m := range sampleMessages() {
		f.Add(EncodeSerial(m))
	}
	f.Add(make([]byte, SerialFrameSize))

	f.Fuzz(func(t *testing.T, data []byte) {
		m, err := DecodeSerial(data)
		if err == nil && !VerifyChecksum(data) {
			t.Fatalf("accepted %v with a bad checksum", m)
		}
	})
}
