package serial

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hwmon/monitor/arbiter"
	"github.com/hwmon/monitor/event"
	"github.com/hwmon/monitor/logger"
	"github.com/hwmon/monitor/message"
)

// Transport runs the monitor protocol over a serial line.
//
// The line carries no addresses, so an editor is identified by the sender UUID of its
// VersionParity handshake. Until an editor is bound the transport only answers
// handshakes. Afterwards every frame of the bound editor is answered with a
// Confirmation, except heartbeats; frames of other senders are dropped silently.
type Transport struct {
	cfg     *Config
	factory PortFactory
	arbiter *arbiter.Arbiter
	handler event.Handler
	metrics *Metrics
	logger  logger.Logger

	portMu sync.Mutex
	port   Port
	reader *frameReader

	mu       sync.Mutex
	bound    uuid.UUID
	peer     *editorPeer
	lastSeen time.Time

	writeMu sync.Mutex
	stopped atomic.Bool
}

// New creates a serial transport. A nil factory uses DefaultPortFactory.
func New(cfg *Config, factory PortFactory, arb *arbiter.Arbiter, h event.Handler) *Transport {
	if factory == nil {
		factory = DefaultPortFactory
	}

	return &Transport{
		cfg:     cfg,
		factory: factory,
		arbiter: arb,
		handler: h,
		metrics: &Metrics{},
		logger:  cfg.logger.With("component", "serial", "port", cfg.path),
	}
}

// Metrics returns the transport counters.
func (t *Transport) Metrics() *Metrics { return t.metrics }

// Open opens the serial port. Run calls it when the port is not open yet.
func (t *Transport) Open() error {
	t.portMu.Lock()
	defer t.portMu.Unlock()

	if t.port != nil {
		return nil
	}

	port, err := t.factory(t.cfg.path, t.cfg.Mode())
	if err != nil {
		return err
	}
	if err := port.SetReadTimeout(t.cfg.readTimeout); err != nil {
		_ = port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	t.port = port
	t.reader = newFrameReader(port, t.cfg)
	t.logger.Info("opened serial port", "baud_rate", t.cfg.baudRate)

	return nil
}

// Bound returns the UUID of the connected editor.
func (t *Transport) Bound() (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.bound, t.bound != uuid.Nil
}

// LastSeen returns when the bound editor last sent a valid frame.
func (t *Transport) LastSeen() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastSeen
}

// Stop closes the port. Run returns once its blocked read fails.
func (t *Transport) Stop() {
	t.stopped.Store(true)

	t.portMu.Lock()
	defer t.portMu.Unlock()

	if t.port != nil {
		_ = t.port.Close()
	}
}

// Run serves the line until ctx is cancelled, Stop is called or the port fails.
// A Disconnected event is emitted if an editor was bound when the line went down.
func (t *Transport) Run(ctx context.Context) error {
	if err := t.Open(); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, t.Stop)
	defer stop()

	t.logger.Info("waiting for editor handshake")
	for {
		if err := t.step(ctx); err != nil {
			t.unbind()

			if ctx.Err() != nil || t.stopped.Load() {
				t.logger.Info("serial transport stopped")
				return nil
			}
			t.logger.Error("serial port failed", "error", err)

			return err
		}
	}
}

// step reads and handles one frame. Only I/O errors are returned.
func (t *Transport) step(ctx context.Context) error {
	frame, err := t.reader.readFrame(ctx)
	_, bound := t.Bound()

	if errors.Is(err, ErrFrameTimeout) {
		t.metrics.incFrameTimeouts()
		t.logger.Warn("incomplete frame", "error", err)

		return t.resync(ctx, bound)
	}
	if err != nil {
		return err
	}

	msg, err := message.DecodeSerial(frame)
	if err != nil {
		if errors.Is(err, message.ErrChecksumMismatch) {
			t.metrics.incChecksumErrors()
			t.logger.Warn("corrupted frame", "error", err)

			return t.resync(ctx, bound)
		}

		t.metrics.incDecodeErrors()
		typ, sender, _ := message.Peek(frame)
		t.logger.Warn("drop malformed frame", "type", typ.String(), "sender", sender.String(), "error", err)
		if !bound {
			t.emitFailed(ReasonBadEditorData)
			return nil
		}
		if !t.isBound(sender) {
			t.metrics.incDroppedFrames()
			return nil
		}

		return t.confirm(false)
	}
	t.metrics.incFramesReceived()
	t.logger.Debug("frame received", message.MsgInfo(msg, "bound", bound)...)

	if parity, ok := msg.(*message.VersionParity); ok {
		return t.handshake(parity)
	}

	if !bound {
		t.logger.Warn("unexpected frame before handshake", message.MsgInfo(msg)...)
		if hdr, ok := msg.(*message.FileTransfer); ok {
			if err := t.discardFile(ctx, hdr); err != nil {
				return err
			}
		}
		t.emitFailed(ReasonBadEditorData)

		return nil
	}

	return t.handleBound(ctx, msg)
}

// resync drops the rest of a broken frame and asks the bound editor to resend.
func (t *Transport) resync(ctx context.Context, bound bool) error {
	drained, err := t.reader.drainUntilSilence(ctx)
	if err != nil {
		return err
	}
	t.logger.Debug("line resynchronised", "drained", drained)

	if !bound {
		return nil
	}

	return t.confirm(false)
}

func (t *Transport) handshake(req *message.VersionParity) error {
	resp := &message.VersionParityResponse{
		Header:  message.Header{From: t.cfg.identity},
		Version: t.cfg.version,
	}
	sender := req.Sender()

	current, _ := t.Bound()
	if current != uuid.Nil && current != sender {
		resp.Reason = ReasonDifferentEditor
		t.metrics.incHandshakesFailed()
		t.logger.Info("handshake rejected", "reason", resp.Reason, "editor", sender.String(), "bound", current.String())

		return t.send(resp)
	}

	if !message.Compatible(t.cfg.version, req.Version) {
		resp.Reason = message.MismatchReason(req.Version, t.cfg.version)
		t.metrics.incHandshakesFailed()
		t.logger.Info("handshake rejected", "reason", resp.Reason,
			"compatibility", message.CheckCompatibility(t.cfg.version, req.Version).String())
		if err := t.send(resp); err != nil {
			return err
		}
		t.emitFailed(resp.Reason)

		return nil
	}

	if current == sender {
		// the bound editor restarted its handshake
		resp.Accepted = true
		t.touch()
		t.logger.Debug("handshake repeated", "editor", sender.String())

		return t.send(resp)
	}

	t.mu.Lock()
	t.bound = sender
	peer := &editorPeer{t: t, id: sender}
	t.peer = peer
	t.lastSeen = time.Now()
	t.mu.Unlock()

	resp.Accepted = true
	t.metrics.incHandshakesOK()
	if err := t.send(resp); err != nil {
		return err
	}
	t.arbiter.SetActiveSession(peer)
	t.logger.Info("editor connected", "editor", sender.String())
	t.handler.Handle(event.Event{Kind: event.Connected, Transport: event.Serial})

	return nil
}

func (t *Transport) handleBound(ctx context.Context, msg message.Message) error {
	bound, _ := t.Bound()
	if msg.Sender() != bound {
		t.metrics.incDroppedFrames()
		t.logger.Debug("drop frame of unknown editor", message.MsgInfo(msg)...)
		if hdr, ok := msg.(*message.FileTransfer); ok {
			return t.discardFile(ctx, hdr)
		}

		return nil
	}
	t.touch()

	switch m := msg.(type) {
	case *message.Heartbeat:
		return nil

	case *message.Disconnect:
		t.logger.Info("editor disconnected", "editor", bound.String())
		t.unbind()

		return t.confirm(true)

	case *message.FileTransfer:
		ok, err := t.receiveFile(ctx, m)
		if err != nil {
			return err
		}

		return t.confirm(ok)

	default:
		ev, ok := event.FromMessage(event.Serial, msg)
		if ok {
			t.handler.Handle(ev)
		} else {
			t.logger.Warn("unsupported frame", message.MsgInfo(msg)...)
		}

		return t.confirm(ok)
	}
}

// receiveFile performs the second read of a file transfer: exactly Size raw bytes
// follow the header frame before framing resumes.
func (t *Transport) receiveFile(ctx context.Context, hdr *message.FileTransfer) (bool, error) {
	if hdr.Size > t.cfg.maxFileSize {
		t.logger.Warn("reject file transfer", "name", hdr.Name, "size", hdr.Size,
			"error", fmt.Errorf("%w: %d > %d", ErrFileTooLarge, hdr.Size, t.cfg.maxFileSize))
		_, err := t.reader.drainUntilSilence(ctx)

		return false, err
	}

	data, err := t.reader.readRaw(ctx, int(hdr.Size))
	if errors.Is(err, ErrShortPayload) {
		t.logger.Warn("discard file payload", "name", hdr.Name, "error", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	t.metrics.incFilesReceived()
	t.logger.Info("file received", "name", hdr.Name, "size", hdr.Size, "kind", hdr.Kind)
	t.handler.Handle(event.Event{
		Kind:      event.FileTransfer,
		Transport: event.Serial,
		File:      &event.File{Name: hdr.Name, Kind: hdr.Kind, Data: data},
	})

	return true, nil
}

// discardFile consumes the raw payload announced by a header that is not accepted,
// so framing resumes after it. Nothing is confirmed.
func (t *Transport) discardFile(ctx context.Context, hdr *message.FileTransfer) error {
	if hdr.Size > t.cfg.maxFileSize {
		_, err := t.reader.drainUntilSilence(ctx)
		return err
	}

	data, err := t.reader.readRaw(ctx, int(hdr.Size))
	if errors.Is(err, ErrShortPayload) {
		err = nil
	}
	t.logger.Debug("discarded file payload", "name", hdr.Name, "sender", hdr.Sender().String(), "bytes", len(data))

	return err
}

func (t *Transport) isBound(id uuid.UUID) bool {
	bound, ok := t.Bound()
	return ok && bound == id
}

func (t *Transport) confirm(ok bool) error {
	t.metrics.incConfirmation(ok)
	return t.send(&message.Confirmation{Header: message.Header{From: t.cfg.identity}, OK: ok})
}

func (t *Transport) send(msg message.Message) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	frame := message.EncodeSerial(msg)
	for written := 0; written < len(frame); {
		n, err := t.port.Write(frame[written:])
		written += n
		if err != nil {
			return fmt.Errorf("write %s: %w", msg.Type(), err)
		}
	}

	return nil
}

func (t *Transport) touch() {
	t.mu.Lock()
	t.lastSeen = time.Now()
	t.mu.Unlock()
}

// unbind forgets the bound editor and emits Disconnected if there was one.
func (t *Transport) unbind() {
	t.mu.Lock()
	peer := t.peer
	t.bound = uuid.Nil
	t.peer = nil
	t.mu.Unlock()

	if peer == nil {
		return
	}

	t.arbiter.ClearIf(peer)
	t.handler.Handle(event.Event{Kind: event.Disconnected, Transport: event.Serial})
}

func (t *Transport) emitFailed(reason string) {
	t.handler.Handle(event.Event{Kind: event.ConnectionFailed, Transport: event.Serial, Reason: reason})
}

// editorPeer represents the bound editor in the arbiter.
type editorPeer struct {
	t  *Transport
	id uuid.UUID
}

func (p *editorPeer) Hostname() string { return "serial:" + p.id.String() }
func (p *editorPeer) RemoteIP() net.IP { return nil }

// Stop releases the editor. Its frames are dropped until it repeats the handshake.
func (p *editorPeer) Stop() {
	p.t.mu.Lock()
	current := p.t.peer
	p.t.mu.Unlock()

	if current == p {
		p.t.unbind()
	}
}
