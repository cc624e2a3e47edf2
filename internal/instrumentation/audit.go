package instrumentation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Saijash84/CalMate/internal/logging"
)

// Mutation captures one change to the booking store for audit logging.
//
// # Privacy Considerations
//
// Summary and Attendees are free text typed by the user and may name people.
// They are only written when the logger is configured with IncludePII.
// Session IDs are hashed unless IncludePII is set.
type Mutation struct {
	// Kind is one of MutationBook, MutationEdit, MutationCancel
	Kind    string
	Session string

	BookingID string
	Summary   string
	Start     time.Time
	Timezone  string
	Attendees []string

	// Simulated is true when no external calendar was written
	Simulated bool

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewMutation creates a Mutation with timing started.
// Call Complete when the store write finishes.
func NewMutation(kind, session string) *Mutation {
	return &Mutation{
		Kind:      kind,
		Session:   session,
		StartTime: time.Now(),
	}
}

// WithBooking records the booking the mutation touched.
func (m *Mutation) WithBooking(id, summary string, start time.Time, tz string, attendees []string) *Mutation {
	m.BookingID = id
	m.Summary = summary
	m.Start = start
	m.Timezone = tz
	m.Attendees = attendees
	return m
}

// WithSimulated marks whether the external calendar was skipped.
func (m *Mutation) WithSimulated(simulated bool) *Mutation {
	m.Simulated = simulated
	return m
}

// WithSpanContext extracts trace context from the current span.
func (m *Mutation) WithSpanContext(ctx context.Context) *Mutation {
	m.TraceID, m.SpanID = TraceIDs(ctx)
	return m
}

// Complete marks the mutation as finished and calculates duration.
func (m *Mutation) Complete(err error) *Mutation {
	m.Duration = time.Since(m.StartTime)
	m.Success = err == nil
	if err != nil {
		m.Error = err.Error()
	}
	return m
}

// Status returns "success" or "error" based on the Success field.
func (m *Mutation) Status() string {
	if m.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns attributes safe for general operational logs.
func (m *Mutation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("mutation", m.Kind),
		slog.Duration("duration", m.Duration),
		slog.Bool("success", m.Success),
		slog.Bool("simulated", m.Simulated),
	}

	if m.Session != "" {
		attrs = append(attrs, slog.String("session", logging.SessionHash(m.Session)))
	}
	if m.BookingID != "" {
		attrs = append(attrs, slog.String("booking_id", m.BookingID))
	}
	if !m.Start.IsZero() {
		attrs = append(attrs, slog.String("start", m.Start.Format(time.RFC3339)))
	}
	if m.Timezone != "" {
		attrs = append(attrs, slog.String("timezone", m.Timezone))
	}
	if len(m.Attendees) > 0 {
		attrs = append(attrs, slog.Int("attendee_count", len(m.Attendees)))
	}
	if m.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", m.TraceID))
	}
	if m.Error != "" {
		attrs = append(attrs, slog.String("error", m.Error))
	}

	return attrs
}

// LogAuditAttrs returns attributes for full audit logging, including the
// raw session ID, summary and attendee names.
//
// # Security Warning
//
// Route these records to storage with appropriate access controls.
func (m *Mutation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("mutation", m.Kind),
		slog.String("session", m.Session),
		slog.Duration("duration", m.Duration),
		slog.Bool("success", m.Success),
		slog.Bool("simulated", m.Simulated),
	}

	if m.BookingID != "" {
		attrs = append(attrs, slog.String("booking_id", m.BookingID))
	}
	if m.Summary != "" {
		attrs = append(attrs, slog.String("summary", m.Summary))
	}
	if !m.Start.IsZero() {
		attrs = append(attrs, slog.String("start", m.Start.Format(time.RFC3339)))
	}
	if m.Timezone != "" {
		attrs = append(attrs, slog.String("timezone", m.Timezone))
	}
	if len(m.Attendees) > 0 {
		attrs = append(attrs, slog.String("attendees", strings.Join(m.Attendees, ", ")))
	}
	if m.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", m.TraceID))
	}
	if m.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", m.SpanID))
	}
	if m.Error != "" {
		attrs = append(attrs, slog.String("error", m.Error))
	}

	return attrs
}

// ToolInvocation captures one MCP tool call for audit logging.
type ToolInvocation struct {
	Tool    string
	Session string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
}

// NewToolInvocation creates a new ToolInvocation with timing started.
func NewToolInvocation(tool, session string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		Session:   session,
		StartTime: time.Now(),
	}
}

// Complete marks the invocation as finished.
func (ti *ToolInvocation) Complete(err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = err == nil
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// WithSpanContext records the trace id of the tool span in ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID, _ = TraceIDs(ctx)
	return ti
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for structured logging.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if ti.Session != "" {
		attrs = append(attrs, slog.String("session", logging.SessionHash(ti.Session)))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	return attrs
}

// AuditLogger provides structured audit logging for booking mutations
// and tool invocations.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, PII is not included in logs.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:  logger,
		enabled: true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether free text and raw session IDs are logged.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogMutation writes one booking mutation record.
func (al *AuditLogger) LogMutation(m *Mutation) {
	if al == nil || !al.enabled || m == nil {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = m.LogAuditAttrs()
	} else {
		attrs = m.LogAttrs()
	}

	if m.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "booking_mutation", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "booking_mutation_failed", attrs...)
	}
}

// LogToolInvocation writes one tool invocation record.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled || ti == nil {
		return
	}

	attrs := ti.LogAttrs()
	if ti.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "tool_executed", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "tool_failed", attrs...)
	}
}
