// Package server hosts the transports that front the assistant.
//
// # Key Components
//
// ServerContext holds what every transport shares: the assistant, the
// booking store, lazily created calendar clients per account, and the
// instrumentation provider.
//
// APIServer is the gin based chat API:
//   - POST /v1/chat runs one conversational turn
//   - GET /v1/chat/stream runs a conversation over a websocket
//   - GET /v1/bookings and GET /v1/slots expose the store and availability engine
//
// MCPHTTPServer serves the MCP tools over SSE or streamable HTTP with
// optional bearer authentication.
//
// SessionTracker counts live chat sessions and expires idle ones. HealthChecker
// provides Kubernetes probes and MetricsServer serves Prometheus metrics on
// its own port.
package server
