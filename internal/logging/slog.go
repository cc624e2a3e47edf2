package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// Attribute keys shared by every component so that log queries can rely on
// one name per concept.
const (
	KeyOperation = "operation"
	KeyService   = "service"
	KeyAccount   = "account"
	KeyIntent    = "intent"
	KeyBookingID = "booking_id"
	KeySession   = "session"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
)

// WithService tags logger with the component name, e.g. "calendar".
func WithService(logger *slog.Logger, service string) *slog.Logger {
	return logger.With(slog.String(KeyService, service))
}

// WithOperation tags logger with an operation such as "assistant.book".
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(Operation(operation))
}

func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }
func Account(account string) slog.Attr { return slog.String(KeyAccount, account) }
func Intent(intent string) slog.Attr { return slog.String(KeyIntent, intent) }
func BookingID(id string) slog.Attr { return slog.String(KeyBookingID, id) }
func Status(status string) slog.Attr { return slog.String(KeyStatus, status) }
func Session(sessionID string) slog.Attr { return slog.String(KeySession, SessionHash(sessionID)) }

// Err is nil-safe: a nil error yields an empty group, which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// SessionHash maps a chat session id to "session:" plus 12 hex digits of its
// SHA-256. Equal ids correlate across log lines; the id itself never appears.
func SessionHash(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(sessionID))
	return "session:" + hex.EncodeToString(sum[:6])
}
