package serial

import (
	"context"
	"fmt"
	"time"

	"github.com/hwmon/monitor/message"
)

// frameReader assembles fixed size frames from a port that returns short reads.
//
// This type is NOT goroutine-safe; only the transport loop reads from the port.
type frameReader struct {
	port Port
	cfg  *Config
	buf  [message.SerialFrameSize]byte
}

func newFrameReader(port Port, cfg *Config) *frameReader {
	return &frameReader{port: port, cfg: cfg}
}

// readFrame blocks until a complete frame arrived or ctx is done. An idle line is
// waited on indefinitely, but once the first byte of a frame arrived the rest must
// follow within the frame timeout, otherwise the partial frame is dropped and
// ErrFrameTimeout is returned. The returned slice is reused by the next call.
func (r *frameReader) readFrame(ctx context.Context) ([]byte, error) {
	var deadline time.Time
	for read := 0; read < len(r.buf); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.port.Read(r.buf[read:])
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}

		now := time.Now()
		if n == 0 {
			if read > 0 && now.After(deadline) {
				return nil, fmt.Errorf("%w: %d of %d bytes", ErrFrameTimeout, read, len(r.buf))
			}
			continue
		}

		if read == 0 {
			deadline = now.Add(r.cfg.frameTimeout)
		}
		read += n
	}

	return r.buf[:], nil
}

// readRaw reads exactly size unframed bytes. The payload may pause for at most the
// file timeout between two chunks; a longer gap returns the bytes read so far with
// ErrShortPayload.
func (r *frameReader) readRaw(ctx context.Context, size int) ([]byte, error) {
	data := make([]byte, size)
	deadline := time.Now().Add(r.cfg.fileTimeout)

	for read := 0; read < size; {
		if err := ctx.Err(); err != nil {
			return data[:read], err
		}

		n, err := r.port.Read(data[read:])
		if err != nil {
			return data[:read], fmt.Errorf("read file payload: %w", err)
		}

		now := time.Now()
		if n == 0 {
			if now.After(deadline) {
				return data[:read], fmt.Errorf("%w: %d of %d bytes", ErrShortPayload, read, size)
			}
			continue
		}

		read += n
		deadline = now.Add(r.cfg.fileTimeout)
	}

	return data, nil
}

// drainUntilSilence reads and discards bytes until the line is silent for the silence
// timeout, so the next read starts on a frame boundary once the editor retransmits.
func (r *frameReader) drainUntilSilence(ctx context.Context) (int, error) {
	buf := make([]byte, 256)
	drained := 0
	quietSince := time.Now()

	for ctx.Err() == nil {
		n, err := r.port.Read(buf)
		if err != nil {
			return drained, fmt.Errorf("drain: %w", err)
		}

		now := time.Now()
		if n > 0 {
			drained += n
			quietSince = now
			continue
		}

		if now.Sub(quietSince) >= r.cfg.silenceTimeout {
			return drained, nil
		}
	}

	return drained, ctx.Err()
}
