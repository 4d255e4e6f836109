package network

import "errors"

var (
	// ErrServerClosed is returned by Serve after the server was closed.
	ErrServerClosed = errors.New("network: server closed")

	// ErrNotListening is returned by Serve when Listen was not called.
	ErrNotListening = errors.New("network: not listening")

	// ErrSessionClosed is returned when writing to a closed session.
	ErrSessionClosed = errors.New("network: session closed")

	// ErrNotBroadcast is returned for discovery datagrams that are not editor probes.
	ErrNotBroadcast = errors.New("network: not an editor broadcast")

	// ErrRateLimited is returned when a discovery reply is suppressed by the per-editor limit.
	ErrRateLimited = errors.New("network: discovery reply rate limited")
)
