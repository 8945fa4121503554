// Package mcp implements a client for MCP (Model Context Protocol)
// servers. MCP uses JSON-RPC 2.0 over a framed byte-stream transport;
// this package provides the request/response correlation engine, the
// wire envelope types, a protocol-level client (initialize, tools/list,
// tools/call, shutdown), and two reference transports: a subprocess
// speaking newline-delimited JSON over stdin/stdout, and a WebSocket
// connection.
//
// Any number of goroutines may issue calls over one connection. A
// single background goroutine reads inbound frames and routes each
// response to the caller that issued the matching request, so responses
// may arrive in any order relative to requests.
//
// This implementation covers the client/host side only — it does not
// act as an MCP server.
package mcp
