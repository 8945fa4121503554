package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Conn multiplexes JSON-RPC calls from any number of goroutines over a
// single Transport. Outbound requests are assigned monotonically
// increasing IDs; a background read loop routes each inbound response
// to the pending call with the matching ID, so responses may arrive in
// any order.
//
// The read loop runs from NewConn until the transport fails, reaches
// EOF, or is closed. When it exits, every in-flight call fails with
// ErrDisconnected and all later calls fail fast with the same error.
//
// A frame that cannot be decoded also ends the session: frames are
// newline-delimited JSON, so one corrupt frame means the stream offset
// can no longer be trusted and skipping it would risk mis-framing every
// later message.
type Conn struct {
	transport Transport
	logger    *slog.Logger

	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan *Response // request ID → response channel
	stopped bool

	done chan struct{} // closed when the read loop exits

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps a transport in a connection and starts its read loop.
// The transport must be ready for traffic (subprocess started, socket
// dialed) before NewConn is called.
func NewConn(transport Transport, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Conn{
		transport: transport,
		logger:    logger,
		pending:   make(map[int64]chan *Response),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Call sends a request and blocks until the matching response arrives,
// ctx is cancelled, or the connection shuts down. A server-reported
// error is returned as *RPCError. Cancelling ctx abandons the call and
// removes its registry entry; a late response for that ID is then
// discarded as unmatched.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	// Bail early if the context is already cancelled to avoid a
	// pointless send.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame, id, err := c.encodeRequest(method, params)
	if err != nil {
		return nil, err
	}

	ch := make(chan *Response, 1)
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil, ErrDisconnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.send(ctx, frame); err != nil {
		// No response will ever arrive for an ID that failed to send.
		c.forget(id)
		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			// Channel closed by the read loop's drain on exit.
			return nil, ErrDisconnected
		}
		return c.resolve(id, resp)
	case <-c.done:
		// The read loop may have resolved this call just before it
		// exited: once the entry leaves the registry the response sits
		// buffered in ch and drain never touches it, so both select
		// branches are ready. Prefer the answer over the disconnect.
		select {
		case resp, ok := <-ch:
			if ok {
				return c.resolve(id, resp)
			}
		default:
		}
		return nil, ErrDisconnected
	}
}

// resolve turns a matched response into the caller-visible outcome.
func (c *Conn) resolve(id int64, resp *Response) (json.RawMessage, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.Result == nil {
		return nil, &ProtocolError{ID: id, Reason: "response has neither result nor error"}
	}
	return resp.Result, nil
}

// Notify sends a notification. No response is expected and no registry
// entry is created; failure surfaces only as a send error.
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return ErrDisconnected
	}

	frame, err := json.Marshal(NewNotification(method, params))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := c.send(ctx, frame); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// send logs the outbound frame at trace level and hands it to the
// transport.
func (c *Conn) send(ctx context.Context, frame []byte) error {
	c.logger.Log(ctx, LevelTrace, "frame sent", "json", string(frame))
	return c.transport.Send(ctx, frame)
}

// Close closes the transport and waits for the read loop to exit, so
// the connection is fully quiescent when Close returns. Safe to call
// more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.transport.Close()
		<-c.done
	})
	return c.closeErr
}

// encodeRequest allocates the next request ID and marshals the
// envelope. The ID counter is independent of the registry lock, so ID
// allocation never contends with dispatch.
func (c *Conn) encodeRequest(method string, params any) ([]byte, int64, error) {
	id := c.nextID.Add(1)
	frame, err := json.Marshal(NewRequest(id, method, params))
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	return frame, id, nil
}

// forget removes a pending entry that will never be resolved (send
// failure or abandoned call).
func (c *Conn) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop reads frames from the transport, routing responses to their
// pending channels. It is the sole caller of transport.Receive. On any
// receive or decode failure it drains all pending calls and exits.
func (c *Conn) readLoop() {
	defer close(c.done)
	defer c.drain()

	for {
		frame, err := c.transport.Receive(context.Background())
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Error("transport receive failed", "error", err)
			}
			return
		}
		c.logger.Log(context.Background(), LevelTrace, "frame received", "json", string(frame))

		var resp Response
		if err := json.Unmarshal(frame, &resp); err != nil {
			c.logger.Error("malformed frame, ending session",
				"error", err,
				"frame", string(frame),
			)
			return
		}

		// Server-originated notifications and requests carry no ID we
		// issued. This client does not service them.
		if resp.ID == nil {
			c.logger.Debug("discarding server message without id", "method", resp.Method)
			continue
		}

		// Remove before resolving so a duplicate frame with the same ID
		// finds no entry and is discarded.
		c.mu.Lock()
		ch, ok := c.pending[*resp.ID]
		if ok {
			delete(c.pending, *resp.ID)
		}
		c.mu.Unlock()

		if !ok {
			// Intentional: the caller may have abandoned the request.
			c.logger.Debug("discarding response for unknown id", "id", *resp.ID)
			continue
		}
		ch <- &resp
	}
}

// drain marks the connection stopped and closes every pending channel
// so no caller waits forever on a response that cannot arrive.
func (c *Conn) drain() {
	c.mu.Lock()
	c.stopped = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
}
