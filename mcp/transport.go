package mcp

import "context"

// Transport is one framed duplex byte channel to an MCP server. The
// connection layer owns request/response correlation; transports only
// move whole frames.
type Transport interface {
	// Send writes one complete frame. Implementations must serialize
	// concurrent Send calls so frames are never interleaved on the wire.
	Send(ctx context.Context, frame []byte) error

	// Receive blocks until one complete frame is available, the
	// transport is closed, or the peer goes away. It is called from
	// exactly one goroutine (the connection's read loop); implementations
	// need not support concurrent receivers.
	Receive(ctx context.Context) ([]byte, error)

	// Close shuts down the transport and releases resources. For stdio
	// transports this terminates the subprocess. Close is idempotent
	// and unblocks a pending Receive.
	Close() error
}
