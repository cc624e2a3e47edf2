// Package cmd implements the command-line interface for calmate.
//
// This package provides the following commands:
//   - serve: Run the chat API (http) or the MCP server (stdio, streamable-http, sse)
//   - chat: Talk to the assistant in an interactive terminal session
//   - bookings: List stored bookings and cancel them by id
//   - auth: Bootstrap the Google Calendar OAuth token
//   - version: Display version information
//
// Configuration comes from calmate.yaml, CALMATE_ environment variables and
// command flags; see package config.
package cmd
