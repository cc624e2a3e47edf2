// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for calmate.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_sessions: Gauge of open chat sessions
//
// Conversation Metrics:
//   - calmate_turns_total: Counter of handled turns by intent and outcome
//   - calmate_turn_duration_seconds: Histogram of turn handling durations
//   - calmate_booking_mutations_total: Counter of book, edit and cancel writes
//
// Calendar Provider Metrics:
//   - calendar_provider_operations_total: Counter of external calendar calls by operation and status
//   - calendar_provider_operation_duration_seconds: Histogram of external calendar call durations
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Spans are created for:
//   - conversation turns (assistant.handle)
//   - MCP tool invocations (tool.<name>)
//   - external calendar calls (calendar.<operation>)
//
// # Configuration
//
// Config is filled from the telemetry section of calmate.yaml (or the
// matching CALMATE_TELEMETRY_* variables). Metrics go to prometheus, otlp or
// stdout; traces go to otlp, stdout or nowhere. The stdout exporters write to
// Config.ExporterOutput so that the MCP stdio transport keeps stdout clean.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordTurn(ctx, "book", "success", sessionID, time.Since(start))
package instrumentation
