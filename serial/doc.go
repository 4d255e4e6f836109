// Package serial runs the monitor protocol over a point-to-point serial line.
//
// Serial frames are the 128 byte network frames followed by an 8 byte CRC-32 trailer
// (see message.EncodeSerial). Because the line has neither framing nor delivery
// guarantees the transport adds:
//
//   - a VersionParity handshake that binds the line to one editor UUID,
//   - a Confirmation reply after every frame of the bound editor except heartbeats,
//   - resynchronisation: a corrupted or incomplete frame is discarded, the line is
//     drained until it falls silent and a negative Confirmation asks for a resend,
//   - a two-phase file transfer where a FileTransfer header is followed by exactly
//     Size raw bytes before framed reads resume.
package serial
