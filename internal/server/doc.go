// Package server implements an MCP (Model Context Protocol) server that
// exposes the preprocessing pipeline as tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_is_image: tolerant format probe, never fails
//   - image_load: dimensions, format and slide pyramid of a file
//   - image_expand: resolve image and list-file arguments into image paths
//   - image_preprocess: load, transform and write one file
//
// Tool arguments override the parameters the server was started with for
// that call only. Previews are never drawn since stdout carries the protocol.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: the Go error string
//
// Lines that are not valid JSON get a -32700 parse error response.
//
// # Usage
//
//	srv := server.New(params, version, logger)
//	if err := srv.Run(ctx); err != nil {
//	    logger.Fatal(err)
//	}
package server
