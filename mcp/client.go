package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jthum/mcp-client-go/internal/buildinfo"
)

// Client connects to a single MCP server and provides typed access to
// the protocol operations (initialize, tools/list, tools/call,
// shutdown). It is safe for concurrent use; independent calls share the
// underlying connection.
type Client struct {
	name   string
	conn   *Conn
	logger *slog.Logger

	mu          sync.RWMutex
	initialized bool
	serverName  string
	serverVer   string
	toolsLoaded bool
	tools       []ToolDefinition
}

// NewClient creates an MCP client for the given server. The transport
// determines how frames are delivered (stdio subprocess or WebSocket)
// and must be ready for traffic; NewClient starts the connection's
// read loop immediately.
func NewClient(name string, transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("mcp_server", name)
	return &Client{
		name:   name,
		conn:   NewConn(transport, logger),
		logger: logger,
	}
}

// Name returns the server name this client is connected to.
func (c *Client) Name() string {
	return c.name
}

// ServerInfo returns the name and version the server reported during
// the handshake. ok is false until Initialize has completed.
func (c *Client) ServerInfo() (name, version string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName, c.serverVer, c.initialized
}

// Initialize performs the MCP handshake: sends an initialize request
// and then the notifications/initialized notification.
func (c *Client) Initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "mcpcall",
			"version": buildinfo.Version,
		},
	}

	raw, err := c.conn.Call(ctx, "initialize", params)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	var result initializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("unmarshal initialize result: %w", err)
	}

	c.mu.Lock()
	c.initialized = true
	c.serverName = result.ServerInfo.Name
	c.serverVer = result.ServerInfo.Version
	c.mu.Unlock()

	c.logger.Info("MCP server initialized",
		"server_name", result.ServerInfo.Name,
		"server_version", result.ServerInfo.Version,
		"protocol_version", result.ProtocolVersion,
	)

	// Complete the handshake. The server expects this before serving
	// tool traffic.
	if err := c.conn.Notify(ctx, "notifications/initialized", nil); err != nil {
		return fmt.Errorf("send initialized notification: %w", err)
	}

	return nil
}

// ListTools calls tools/list and returns the available tool
// definitions, following next_cursor pagination until the server is
// exhausted. Results are cached; subsequent calls return the cached
// list.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	c.mu.RLock()
	if c.toolsLoaded {
		defer c.mu.RUnlock()
		return c.tools, nil
	}
	c.mu.RUnlock()

	var tools []ToolDefinition
	cursor := ""
	for {
		var params any
		if cursor != "" {
			params = map[string]any{"cursor": cursor}
		}

		raw, err := c.conn.Call(ctx, "tools/list", params)
		if err != nil {
			return nil, fmt.Errorf("tools/list: %w", err)
		}

		var result ListToolsResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal tools/list result: %w", err)
		}

		tools = append(tools, result.Tools...)
		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	c.mu.Lock()
	c.toolsLoaded = true
	c.tools = tools
	c.mu.Unlock()

	c.logger.Info("discovered MCP tools", "count", len(tools))
	return tools, nil
}

// CallTool invokes a tool by name with the given arguments and returns
// the full result, including its content blocks and IsError flag.
// Protocol-level failures (transport, RPC error, disconnect) are
// returned as errors; a tool-level failure is reported through the
// result's IsError flag.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallToolResult, error) {
	params := map[string]any{
		"name":      name,
		"arguments": args,
	}

	raw, err := c.conn.Call(ctx, "tools/call", params)
	if err != nil {
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}

	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal tools/call result: %w", err)
	}

	return &result, nil
}

// CallToolText invokes a tool and flattens its content to a single
// string. A result with IsError set is converted to a Go error carrying
// the flattened text.
func (c *Client) CallToolText(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := c.CallTool(ctx, name, args)
	if err != nil {
		return "", err
	}

	text := result.Text()
	if result.IsError {
		return "", fmt.Errorf("MCP tool %s returned error: %s", name, text)
	}
	return text, nil
}

// Ping checks whether the MCP server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.conn.Call(ctx, "ping", nil)
	return err
}

// Notify sends a one-way notification to the server.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	return c.conn.Notify(ctx, method, params)
}

// Shutdown ends the session: a shutdown request, a best-effort exit
// notification, then transport close. Close is attempted even when the
// shutdown request fails; if both fail the two errors are joined so
// neither is lost.
func (c *Client) Shutdown(ctx context.Context) error {
	_, callErr := c.conn.Call(ctx, "shutdown", nil)
	if callErr != nil {
		c.logger.Warn("shutdown request failed", "error", callErr)
	}

	// Best effort: the peer may already be gone.
	if err := c.conn.Notify(ctx, "exit", nil); err != nil {
		c.logger.Debug("exit notification failed", "error", err)
	}

	closeErr := c.conn.Close()

	switch {
	case callErr != nil && closeErr != nil:
		return errors.Join(
			fmt.Errorf("shutdown request: %w", callErr),
			fmt.Errorf("close transport: %w", closeErr),
		)
	case callErr != nil:
		return fmt.Errorf("shutdown request: %w", callErr)
	case closeErr != nil:
		return fmt.Errorf("close transport: %w", closeErr)
	}
	return nil
}

// Close shuts down the client and its transport without the shutdown
// handshake. Prefer Shutdown for a graceful exit.
func (c *Client) Close() error {
	c.logger.Info("closing MCP client")
	return c.conn.Close()
}
