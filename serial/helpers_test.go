package serial

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	goserial "go.bug.st/serial"

	"github.com/hwmon/monitor/arbiter"
	"github.com/hwmon/monitor/event"
	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/message"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	monitorID = uuid.MustParse("6f1c2d3e-4b5a-4c6d-8e7f-0123456789ab")
	editorID  = uuid.MustParse("a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d")
	otherID   = uuid.MustParse("0badc0de-0000-4000-8000-000000000001")
)

var errPortClosed = errors.New("port closed")

// fakePort is an in-memory serial line. Chunks fed by the test are returned by Read
// in order, and Read returns a short read after the read timeout like a real port.
type fakePort struct {
	in      chan []byte
	written chan []byte
	closed  chan struct{}
	failed  chan struct{}

	mu        sync.Mutex
	timeout   time.Duration
	closeOnce sync.Once
	failOnce  sync.Once
	pending   []byte
}

func newFakePort() *fakePort {
	return &fakePort{
		in:      make(chan []byte, 256),
		written: make(chan []byte, 64),
		closed:  make(chan struct{}),
		failed:  make(chan struct{}),
		timeout: 10 * time.Millisecond,
	}
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t

	return nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, errPortClosed
	case <-p.failed:
		return 0, io.ErrUnexpectedEOF
	default:
	}

	if len(p.pending) == 0 {
		p.mu.Lock()
		timeout := p.timeout
		p.mu.Unlock()

		select {
		case chunk := <-p.in:
			p.pending = chunk
		case <-p.closed:
			return 0, errPortClosed
		case <-p.failed:
			return 0, io.ErrUnexpectedEOF
		case <-time.After(timeout):
			return 0, nil
		}
	}

	n := copy(b, p.pending)
	p.pending = p.pending[n:]

	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, errPortClosed
	default:
	}
	p.written <- append([]byte(nil), b...)

	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

// fail makes the next Read return an I/O error.
func (p *fakePort) fail() {
	p.failOnce.Do(func() { close(p.failed) })
}

func (p *fakePort) feed(chunks ...[]byte) {
	for _, c := range chunks {
		p.in <- c
	}
}

func (p *fakePort) feedMsg(m message.Message) {
	p.feed(message.EncodeSerial(m))
}

type harness struct {
	t      *testing.T
	port   *fakePort
	tr     *Transport
	arb    *arbiter.Arbiter
	events event.Chan
	cancel context.CancelFunc
	done   chan error
}

func testConfig(t *testing.T, opts ...ConnOption) *Config {
	t.Helper()

	base := []ConnOption{
		WithLogger(logger.New(logger.WithOutput(io.Discard))),
		WithIdentity(monitorID),
		WithReadTimeout(10 * time.Millisecond),
		WithSilenceTimeout(20 * time.Millisecond),
		WithFrameTimeout(100 * time.Millisecond),
		WithFileTimeout(100 * time.Millisecond),
	}
	cfg, err := NewConfig("/dev/ttyAMA0", append(base, opts...)...)
	require.NoError(t, err)

	return cfg
}

func startTransport(t *testing.T, opts ...ConnOption) *harness {
	t.Helper()

	port := newFakePort()
	h := &harness{
		t:      t,
		port:   port,
		arb:    arbiter.New(),
		events: make(event.Chan, 32),
		done:   make(chan error, 1),
	}
	factory := func(string, *goserial.Mode) (Port, error) { return port, nil }
	h.tr = New(testConfig(t, opts...), factory, h.arb, h.events)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.tr.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(5 * time.Second):
			t.Error("transport did not stop")
		}
	})

	return h
}

func (h *harness) written() message.Message {
	h.t.Helper()

	select {
	case frame := <-h.port.written:
		require.Len(h.t, frame, message.SerialFrameSize)
		m, err := message.DecodeSerial(frame)
		require.NoError(h.t, err)
		return m
	case <-time.After(2 * time.Second):
		require.FailNow(h.t, "nothing written")
		return nil
	}
}

func (h *harness) requireNothingWritten() {
	h.t.Helper()

	select {
	case frame := <-h.port.written:
		m, _ := message.DecodeSerial(frame)
		require.FailNow(h.t, "unexpected write", "%v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func (h *harness) confirmation() bool {
	h.t.Helper()

	c, ok := h.written().(*message.Confirmation)
	require.True(h.t, ok)
	require.Equal(h.t, monitorID, c.Sender())

	return c.OK
}

func (h *harness) event() event.Event {
	h.t.Helper()

	select {
	case ev := <-h.events:
		require.Equal(h.t, event.Serial, ev.Transport)
		return ev
	case <-time.After(2 * time.Second):
		require.FailNow(h.t, "no event")
		return event.Event{}
	}
}

func (h *harness) requireNoEvent() {
	h.t.Helper()

	select {
	case ev := <-h.events:
		require.FailNow(h.t, "unexpected event", "kind %s", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

// connect performs an accepted handshake for editorID.
func (h *harness) connect() {
	h.t.Helper()

	h.port.feedMsg(parity(editorID, message.LocalVersion))
	resp, ok := h.written().(*message.VersionParityResponse)
	require.True(h.t, ok)
	require.True(h.t, resp.Accepted)
	require.Equal(h.t, event.Connected, h.event().Kind)
}

func parity(from uuid.UUID, v message.Version) *message.VersionParity {
	return &message.VersionParity{Header: message.Header{From: from}, Version: v}
}

func hdr(from uuid.UUID) message.Header {
	return message.Header{From: from}
}
