package mcp

import (
	"errors"
	"fmt"
)

// ErrDisconnected is returned by Call and Notify when the connection's
// read loop has exited — because the transport reached EOF, failed, or
// was closed — and no response can ever arrive. Calls that were
// in flight when the loop exited fail with this error too.
var ErrDisconnected = errors.New("mcp connection closed")

// ProtocolError reports an inbound frame that matched a pending request
// but violated the JSON-RPC response shape, e.g. a response carrying
// neither result nor error.
type ProtocolError struct {
	ID     int64
	Reason string
}

// Error implements the error interface for ProtocolError.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error in response %d: %s", e.ID, e.Reason)
}
