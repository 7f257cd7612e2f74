// Package server implements an MCP (Model Context Protocol) server that exposes
// image redaction as tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Redaction:
//   - redact_directory: Redact a directory tree, or plan it with dry_run
//   - redact_image: Redact one file
//   - preview_detections: Detected regions and an outlined PNG, nothing written
//
// Discovery:
//   - list_images: Supported images under a directory
//   - estimate_time: Projected processing time from a timed sample
//
// Model and system:
//   - model_info: Cached model state
//   - clear_model_cache: Delete the cached model
//   - system_info: Version, host facts, requirements and settings
//
// Settings:
//   - update_settings: Change ratio, threshold, mode, blur strength or margin
//
// A redact_directory call whose params carry _meta.progressToken receives one
// notifications/progress message per file before its response.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with code
// -32000 and the Go error string as data. A line that is not valid JSON gets
// a -32700 parse error with a null id.
//
// # Usage
//
//	a, _ := app.New(cfg, app.Options{})
//	srv := server.New(a, version)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
