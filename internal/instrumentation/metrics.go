package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Saijash84/CalMate/internal/logging"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrIntent    = "intent"
	attrOutcome   = "outcome"
	attrTool      = "tool"
	attrSession   = "session"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	activeSessions      metric.Int64UpDownCounter

	// Conversation metrics
	turnsTotal   metric.Int64Counter
	turnDuration metric.Float64Histogram
	bookingsOps  metric.Int64Counter

	// Calendar provider metrics
	calendarOperationsTotal   metric.Int64Counter
	calendarOperationDuration metric.Float64Histogram

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// Histogram bucket boundaries in seconds.
var (
	httpBuckets   = []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10}
	turnBuckets   = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5}
	remoteBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
)

// instruments creates instruments on one meter and keeps the first error.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) counter(name, desc, unit string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.fail(name, err)
	return c
}

func (in *instruments) upDown(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.fail(name, err)
	return c
}

func (in *instruments) seconds(name, desc string, buckets []float64) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	in.fail(name, err)
	return h
}

func (in *instruments) fail(name string, err error) {
	if err != nil && in.err == nil {
		in.err = fmt.Errorf("failed to create %s: %w", name, err)
	}
}

// NewMetrics registers every calmate instrument on meter. With detailedLabels
// turn metrics also carry the hashed session.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	in := &instruments{meter: meter}
	m := &Metrics{
		httpRequestsTotal:   in.counter("http_requests_total", "Total number of HTTP requests", "{request}"),
		httpRequestDuration: in.seconds("http_request_duration_seconds", "HTTP request duration in seconds", httpBuckets),
		activeSessions:      in.upDown("active_sessions", "Number of open chat sessions", "{session}"),

		turnsTotal:   in.counter("calmate_turns_total", "Total number of handled conversation turns", "{turn}"),
		turnDuration: in.seconds("calmate_turn_duration_seconds", "Conversation turn handling duration in seconds", turnBuckets),
		bookingsOps:  in.counter("calmate_booking_mutations_total", "Total number of booking store mutations", "{mutation}"),

		calendarOperationsTotal:   in.counter("calendar_provider_operations_total", "Total number of external calendar operations", "{operation}"),
		calendarOperationDuration: in.seconds("calendar_provider_operation_duration_seconds", "External calendar operation duration in seconds", remoteBuckets),

		toolInvocationsTotal: in.counter("mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}"),
		toolDuration:         in.seconds("mcp_tool_duration_seconds", "MCP tool execution duration in seconds", remoteBuckets),

		detailedLabels: detailedLabels,
	}
	if in.err != nil {
		return nil, in.err
	}
	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordTurn records one handled conversation turn.
//
// Parameters:
//   - intent: classified intent (book, cancel, edit, list, check, help, unknown)
//   - outcome: response operation (success, clarify, busy, warning, error, info)
//   - session: raw session id, attached hashed only when detailedLabels is true
//   - duration: time spent handling the turn
func (m *Metrics) RecordTurn(ctx context.Context, intent, outcome, session string, duration time.Duration) {
	if m == nil || m.turnsTotal == nil || m.turnDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrIntent, intent),
		attribute.String(attrOutcome, outcome),
	}
	if m.detailedLabels && session != "" {
		attrs = append(attrs, attribute.String(attrSession, logging.SessionHash(session)))
	}

	m.turnsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.turnDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordBookingMutation counts a store mutation (book, edit, cancel) by status.
func (m *Metrics) RecordBookingMutation(ctx context.Context, operation, status string) {
	if m == nil || m.bookingsOps == nil {
		return
	}

	m.bookingsOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	))
}

// RecordCalendarOperation records an external calendar call.
//
// Parameters:
//   - operation: list, get, create, update, delete or freebusy
//   - status: "success" or "error"
//   - duration: time taken for the call
func (m *Metrics) RecordCalendarOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.calendarOperationsTotal == nil || m.calendarOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.calendarOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.calendarOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// IncrementActiveSessions increments the active sessions counter.
func (m *Metrics) IncrementActiveSessions(ctx context.Context) {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// DecrementActiveSessions decrements the active sessions counter.
func (m *Metrics) DecrementActiveSessions(ctx context.Context) {
	if m == nil || m.activeSessions == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}
