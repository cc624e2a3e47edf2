// Package logging provides structured logging utilities for the calmate application.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - Session id hashing
//   - Consistent attribute naming across the codebase
//   - A printf-style adapter for embedded storage engines
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "assistant.book")
//	logger.Info("booking saved",
//	    logging.BookingID(id),
//	    logging.Status("success"))
//
// Hash identifiers before logging:
//
//	logger.Info("turn handled",
//	    logging.Session(sessionID))
//
// # Security Considerations
//
// Session identifiers are hashed so that lines can be correlated without
// exposing the id. Summaries and attendees only reach the audit log when
// telemetry.audit_include_pii is set.
package logging
