// Package mcp provides the Model Context Protocol (MCP) server for fsgate using mcp-go.
//
// This package implements an MCP server that gives AI assistants sandboxed
// access to a single project directory. Four filesystem tools are exposed
// (read_local_file, write_local_file, list_directory, find_files) plus a
// get_uuid utility tool.
//
// # Implementation
//
// The package uses the mcp-go library (github.com/mark3labs/mcp-go).
//
// # Security
//
// Security is handled through the guard and fsops packages:
//   - Every tool call is validated against the configured allowed root
//   - Symlinks are resolved before the containment check
//   - Residual traversal segments are rejected independently
//   - Write operations additionally validate the parent directory, and
//     glob matches are re-validated individually
//
// # Usage
//
// The server is typically started as a subprocess by AI assistants that
// support MCP integration. It can also be started manually for testing:
//
//	fsgate --root /path/to/project
//
// The server reads JSON-RPC requests from stdin and writes responses to
// stdout until it receives EOF or is terminated.
//
// # Error reporting
//
// Tool failures never surface as protocol faults. Each failure is rendered
// as a human-readable string beginning with "Error:" followed by the
// category phrase (Access denied, not found, Permission denied, or a
// cause-carrying generic message) and returned as an error tool result.
//
// # References
//
// - MCP Specification: https://modelcontextprotocol.io/specification
// - mcp-go Library: https://github.com/mark3labs/mcp-go
package mcp
