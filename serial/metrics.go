package serial

import "sync/atomic"

// Metrics contains atomic counters of the serial transport.
// Each field can back a prometheus CounterFunc.
type Metrics struct {
	FramesReceived   atomic.Uint64
	ChecksumErrors   atomic.Uint64
	DecodeErrors     atomic.Uint64
	FrameTimeouts    atomic.Uint64
	DroppedFrames    atomic.Uint64 // frames of a sender other than the bound editor
	ConfirmationsOK  atomic.Uint64
	ConfirmationsNAK atomic.Uint64
	HandshakesOK     atomic.Uint64
	HandshakesFailed atomic.Uint64
	FilesReceived    atomic.Uint64
}

func (m *Metrics) incFramesReceived()   { m.FramesReceived.Add(1) }
func (m *Metrics) incChecksumErrors()   { m.ChecksumErrors.Add(1) }
func (m *Metrics) incDecodeErrors()     { m.DecodeErrors.Add(1) }
func (m *Metrics) incFrameTimeouts()    { m.FrameTimeouts.Add(1) }
func (m *Metrics) incDroppedFrames()    { m.DroppedFrames.Add(1) }
func (m *Metrics) incHandshakesOK()     { m.HandshakesOK.Add(1) }
func (m *Metrics) incHandshakesFailed() { m.HandshakesFailed.Add(1) }
func (m *Metrics) incFilesReceived()    { m.FilesReceived.Add(1) }

func (m *Metrics) incConfirmation(ok bool) {
	if ok {
		m.ConfirmationsOK.Add(1)
	} else {
		m.ConfirmationsNAK.Add(1)
	}
}
