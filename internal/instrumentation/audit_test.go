package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Saijash84/CalMate/internal/logging"
)

const (
	testSession   = "chat-42"
	testBookingID = "0b5d1c0e-1d5e-4c59-9a33-8d0f1f0b7a11"
	testSummary   = "Budget review"
	testTraceID   = "abc123def456"
)

var testStart = time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

func attrMap(attrs []slog.Attr) map[string]slog.Attr {
	m := make(map[string]slog.Attr, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a
	}
	return m
}

func TestMutation_NewAndComplete(t *testing.T) {
	m := NewMutation(MutationBook, testSession)

	if m.Kind != MutationBook {
		t.Errorf("Kind = %q, want %q", m.Kind, MutationBook)
	}
	if m.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}

	m.Complete(nil)
	if !m.Success {
		t.Error("Success should be true")
	}
	if m.Duration < 0 {
		t.Error("Duration should not be negative")
	}
	if m.Status() != StatusSuccess {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusSuccess)
	}
}

func TestMutation_CompleteWithError(t *testing.T) {
	m := NewMutation(MutationCancel, testSession).Complete(errors.New("booking not found"))

	if m.Success {
		t.Error("Success should be false")
	}
	if m.Error != "booking not found" {
		t.Errorf("Error = %q, want %q", m.Error, "booking not found")
	}
	if m.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusError)
	}
}

func TestMutation_LogAttrs_OmitsFreeText(t *testing.T) {
	m := NewMutation(MutationBook, testSession).
		WithBooking(testBookingID, testSummary, testStart, "UTC", []string{"Bob", "Alice"}).
		WithSimulated(true).
		Complete(nil)
	m.TraceID = testTraceID

	attrs := attrMap(m.LogAttrs())

	if _, ok := attrs["summary"]; ok {
		t.Error("summary should not be in operational attrs")
	}
	if _, ok := attrs["attendees"]; ok {
		t.Error("attendee names should not be in operational attrs")
	}
	if got := attrs["attendee_count"].Value.Int64(); got != 2 {
		t.Errorf("attendee_count = %d, want 2", got)
	}
	if got := attrs["session"].Value.String(); got != logging.SessionHash(testSession) {
		t.Errorf("session = %q, want hashed value", got)
	}
	if got := attrs["booking_id"].Value.String(); got != testBookingID {
		t.Errorf("booking_id = %q, want %q", got, testBookingID)
	}
	if got := attrs["start"].Value.String(); got != "2024-06-10T15:00:00Z" {
		t.Errorf("start = %q", got)
	}
	if !attrs["simulated"].Value.Bool() {
		t.Error("simulated should be true")
	}
	if got := attrs["trace_id"].Value.String(); got != testTraceID {
		t.Errorf("trace_id = %q, want %q", got, testTraceID)
	}
}

func TestMutation_LogAuditAttrs_IncludesFreeText(t *testing.T) {
	m := NewMutation(MutationEdit, testSession).
		WithBooking(testBookingID, testSummary, testStart, "Europe/London", []string{"Bob", "Alice"}).
		Complete(nil)

	attrs := attrMap(m.LogAuditAttrs())

	if got := attrs["session"].Value.String(); got != testSession {
		t.Errorf("session = %q, want raw %q", got, testSession)
	}
	if got := attrs["summary"].Value.String(); got != testSummary {
		t.Errorf("summary = %q, want %q", got, testSummary)
	}
	if got := attrs["attendees"].Value.String(); got != "Bob, Alice" {
		t.Errorf("attendees = %q", got)
	}
	if got := attrs["timezone"].Value.String(); got != "Europe/London" {
		t.Errorf("timezone = %q", got)
	}
}

func TestMutation_MinimalFields(t *testing.T) {
	m := NewMutation(MutationCancel, "").Complete(nil)

	if n := len(m.LogAttrs()); n != 4 {
		t.Errorf("expected 4 attrs for a bare mutation, got %d", n)
	}
}

func TestMutation_WithSpanContext_NoSpan(t *testing.T) {
	m := NewMutation(MutationBook, testSession).WithSpanContext(context.Background())

	if m.TraceID != "" || m.SpanID != "" {
		t.Errorf("expected empty trace context, got %q/%q", m.TraceID, m.SpanID)
	}
}

func TestToolInvocation(t *testing.T) {
	ti := NewToolInvocation("schedule_chat", testSession).Complete(errors.New("boom"))

	if ti.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", ti.Status(), StatusError)
	}
	attrs := attrMap(ti.LogAttrs())
	if got := attrs["tool"].Value.String(); got != "schedule_chat" {
		t.Errorf("tool = %q", got)
	}
	if got := attrs["session"].Value.String(); !strings.HasPrefix(got, "session:") {
		t.Errorf("session = %q, want hashed value", got)
	}
	if got := attrs["error"].Value.String(); got != "boom" {
		t.Errorf("error = %q", got)
	}
}

func TestAuditLogger_New(t *testing.T) {
	al := NewAuditLogger(nil)
	if al.logger == nil {
		t.Error("logger should not be nil when created with nil")
	}

	logger := slog.Default()
	al = NewAuditLogger(logger)
	if al.logger != logger {
		t.Error("logger should be the provided logger")
	}
}

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestAuditLogger_LogMutation(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogMutation(NewMutation(MutationBook, testSession).
		WithBooking(testBookingID, testSummary, testStart, "UTC", nil).
		Complete(nil))
	al.LogMutation(NewMutation(MutationCancel, testSession).Complete(errors.New("not found")))

	recs := decodeRecords(t, &buf)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0]["msg"] != "booking_mutation" || recs[0]["level"] != "INFO" {
		t.Errorf("unexpected first record: %v", recs[0])
	}
	if _, ok := recs[0]["summary"]; ok {
		t.Error("summary should be omitted without IncludePII")
	}
	if recs[1]["msg"] != "booking_mutation_failed" || recs[1]["level"] != "WARN" {
		t.Errorf("unexpected second record: %v", recs[1])
	}
}

func TestAuditLogger_LogMutation_WithPII(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLoggerWithConfig(slog.New(slog.NewJSONHandler(&buf, nil)), AuditLoggingConfig{
		Enabled:    true,
		IncludePII: true,
	})

	al.LogMutation(NewMutation(MutationBook, testSession).
		WithBooking(testBookingID, testSummary, testStart, "UTC", nil).
		Complete(nil))

	recs := decodeRecords(t, &buf)
	if len(recs) != 1 || recs[0]["summary"] != testSummary {
		t.Errorf("expected summary in PII audit record, got %v", recs)
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	al.SetEnabled(false)

	al.LogMutation(NewMutation(MutationBook, testSession).Complete(nil))
	al.LogToolInvocation(NewToolInvocation("schedule_chat", testSession).Complete(nil))

	if buf.Len() != 0 {
		t.Errorf("disabled audit logger wrote %q", buf.String())
	}

	var nilLogger *AuditLogger
	nilLogger.LogMutation(NewMutation(MutationBook, "").Complete(nil))
}
