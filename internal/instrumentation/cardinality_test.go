package instrumentation

import "testing"

func TestOutcomeLabel(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"success", "success"},
		{"Clarify", "clarify"},
		{"busy", "busy"},
		{"not_found", "not_found"},
		{"conflict", "conflict"},
		{"warning", "warning"},
		{"error", "error"},
		{"info", "info"},
		{"", "unknown"},
		{"teapot", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := OutcomeLabel(tt.in); got != tt.expected {
				t.Errorf("OutcomeLabel(%q) = %q, want %q", tt.in, got, tt.expected)
			}
		})
	}
}

func TestIntentLabel(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"book", "book"},
		{"CANCEL", "cancel"},
		{"edit", "edit"},
		{"list", "list"},
		{"check", "check"},
		{"help", "help"},
		{"unknown", "unknown"},
		{"book a meeting with bob", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IntentLabel(tt.in); got != tt.expected {
				t.Errorf("IntentLabel(%q) = %q, want %q", tt.in, got, tt.expected)
			}
		})
	}
}

func TestOperationConstants(t *testing.T) {
	operations := map[string]string{
		OperationList:     "list",
		OperationGet:      "get",
		OperationCreate:   "create",
		OperationUpdate:   "update",
		OperationDelete:   "delete",
		OperationFreeBusy: "freebusy",
	}

	for constant, expected := range operations {
		if constant != expected {
			t.Errorf("Operation constant = %q, want %q", constant, expected)
		}
	}
}
