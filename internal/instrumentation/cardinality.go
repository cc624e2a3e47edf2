package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// Label values that come from user messages or handlers pass through these
// before they reach a counter.

// OutcomeLabel bounds free-form response operations to a fixed label set.
// Anything unexpected is reported as "other".
func OutcomeLabel(operation string) string {
	switch strings.ToLower(operation) {
	case "success", "clarify", "conflict", "busy", "not_found", "warning", "error", "info":
		return strings.ToLower(operation)
	case "":
		return StatusUnknown
	}
	return "other"
}

// IntentLabel bounds intent names the same way.
func IntentLabel(intent string) string {
	switch strings.ToLower(intent) {
	case "book", "cancel", "edit", "list", "check", "help", "unknown":
		return strings.ToLower(intent)
	}
	return "other"
}

// Operation types for calendar provider metrics.
// Status and mutation constants are defined in config.go.
const (
	OperationList     = "list"
	OperationGet      = "get"
	OperationCreate   = "create"
	OperationUpdate   = "update"
	OperationDelete   = "delete"
	OperationFreeBusy = "freebusy"
)
