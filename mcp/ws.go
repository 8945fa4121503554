package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsCloseTimeout bounds the graceful close handshake.
const wsCloseTimeout = 2 * time.Second

// WSConfig configures a WebSocket MCP transport.
type WSConfig struct {
	// URL is the server endpoint (ws:// or wss://).
	URL string

	// Headers are additional HTTP headers sent with the handshake
	// request (e.g., Authorization).
	Headers map[string]string

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger
}

// WSTransport frames messages as WebSocket text messages, one JSON-RPC
// message per WebSocket frame.
type WSTransport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex // gorilla allows at most one concurrent writer

	closeOnce sync.Once
	closeErr  error
}

// DialWS connects to a WebSocket MCP server.
func DialWS(ctx context.Context, cfg WSConfig) (*WSTransport, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	header := http.Header{}
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}

	logger.Info("connecting to MCP WebSocket", "url", cfg.URL)

	dialer := websocket.Dialer{
		ReadBufferSize:  1 << 20, // 1 MiB, tool results can be large
		WriteBufferSize: 64 * 1024,
	}

	conn, _, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial websocket %s: %w", cfg.URL, err)
	}
	conn.SetReadLimit(16 << 20) // 16 MiB max frame

	return &WSTransport{
		conn:   conn,
		logger: logger,
	}, nil
}

// Send writes one frame as a WebSocket text message.
func (t *WSTransport) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write websocket message: %w", err)
	}
	return nil
}

// Receive reads the next WebSocket message. A concurrent Close fails
// the pending read and unblocks it.
func (t *WSTransport) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read websocket message: %w", err)
	}
	return data, nil
}

// Close performs a best-effort close handshake and tears down the
// connection. Idempotent.
func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		// Best effort; WriteControl is safe concurrently with writers
		// and the peer may already be gone.
		err := t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsCloseTimeout),
		)
		if err != nil {
			t.logger.Debug("websocket close handshake failed", "error", err)
		}
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
