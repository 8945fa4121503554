package mcp

import (
	"fmt"
	"log/slog"
	"strings"
)

// protocolVersion is the MCP protocol version we advertise during
// initialization.
const protocolVersion = "2024-11-05"

// LevelTrace is below Debug, used for wire-level frame logging.
const LevelTrace = slog.Level(-8)

// ToolDefinition is an MCP tool as returned by tools/list.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// ContentBlock is a single content item in a tools/call result. Type is
// one of "text", "image", or "embedded_resource"; the remaining fields
// are populated according to Type.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`      // base64 image payload
	MIMEType string `json:"mime_type,omitempty"` // image media type
	Resource any    `json:"resource,omitempty"`
}

// CallToolResult is the result payload of a tools/call response. It is
// produced once per call and not modified afterwards. IsError reports a
// tool-level failure; protocol-level failures surface as Go errors from
// CallTool instead.
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"is_error,omitempty"`
}

// Text flattens the result's content into a single string. Text blocks
// are joined with newlines; images and resources are represented by
// inline markers.
func (r *CallToolResult) Text() string {
	var parts []string
	for _, b := range r.Content {
		switch b.Type {
		case "text":
			parts = append(parts, b.Text)
		case "image":
			parts = append(parts, "[image]")
		case "embedded_resource":
			parts = append(parts, "[resource]")
		default:
			parts = append(parts, fmt.Sprintf("[%s]", b.Type))
		}
	}
	return strings.Join(parts, "\n")
}

// ListToolsResult is the result payload of a tools/list response.
type ListToolsResult struct {
	Tools      []ToolDefinition `json:"tools"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// serverInfo is returned in the initialize response.
type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// serverCapabilities describes what an MCP server supports.
type serverCapabilities struct {
	Tools *struct{} `json:"tools,omitempty"`
}

// initializeResult is the full initialize response result.
type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      serverInfo         `json:"serverInfo"`
	Capabilities    serverCapabilities `json:"capabilities"`
}
