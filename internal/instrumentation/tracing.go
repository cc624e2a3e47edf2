package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every calmate span.
const TracerName = "github.com/Saijash84/CalMate"

// Span attribute keys.
const (
	SpanAttrTool      = "mcp.tool"
	SpanAttrOperation = "calendar.operation"
	SpanAttrCalendar  = "calendar.id"
	SpanAttrIntent    = "calmate.intent"
	SpanAttrOutcome   = "calmate.outcome"
	SpanAttrSession   = "calmate.session" // hashed, see logging.SessionHash
	SpanAttrBookingID = "calmate.booking_id"
	SpanAttrSimulated = "calmate.simulated"
)

// SpanAttributeBuilder collects span attributes. Empty string values are
// skipped so that callers can chain unconditionally.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{}
}

func (b *SpanAttributeBuilder) str(key, value string) *SpanAttributeBuilder {
	if value != "" {
		b.attrs = append(b.attrs, attribute.String(key, value))
	}
	return b
}

func (b *SpanAttributeBuilder) WithTool(tool string) *SpanAttributeBuilder {
	return b.str(SpanAttrTool, tool)
}

func (b *SpanAttributeBuilder) WithIntent(intent string) *SpanAttributeBuilder {
	return b.str(SpanAttrIntent, intent)
}

func (b *SpanAttributeBuilder) WithOutcome(outcome string) *SpanAttributeBuilder {
	return b.str(SpanAttrOutcome, outcome)
}

func (b *SpanAttributeBuilder) WithSession(hashedSession string) *SpanAttributeBuilder {
	return b.str(SpanAttrSession, hashedSession)
}

func (b *SpanAttributeBuilder) WithBooking(id string) *SpanAttributeBuilder {
	return b.str(SpanAttrBookingID, id)
}

func (b *SpanAttributeBuilder) WithSimulated(simulated bool) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Bool(SpanAttrSimulated, simulated))
	return b
}

func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// StartTurnSpan starts "assistant.handle", the span covering one
// conversation turn.
func StartTurnSpan(ctx context.Context, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer().Start(ctx, "assistant.handle",
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartToolSpan starts the server span "tool.<name>" for an MCP tool call.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{attribute.String(SpanAttrTool, toolName)}, attrs...)
	return tracer().Start(ctx, "tool."+toolName,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartCalendarSpan starts the client span "calendar.<operation>" around an
// external calendar call.
func StartCalendarSpan(ctx context.Context, calendarID, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		attribute.String(SpanAttrCalendar, calendarID),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)
	return tracer().Start(ctx, "calendar."+operation,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError marks span failed. A nil err leaves it untouched.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// TraceIDs returns the trace and span id of the span in ctx, or two empty
// strings when ctx carries no valid span.
func TraceIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
