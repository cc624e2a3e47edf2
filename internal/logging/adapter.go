package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// PrintfLogger is the printf-style logging interface expected by embedded
// storage engines such as BadgerDB.
type PrintfLogger interface {
	Errorf(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// SlogAdapter adapts an slog.Logger to PrintfLogger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter wrapping the given slog.Logger.
// If logger is nil, slog.Default() is used.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Errorf logs a formatted message at error level.
func (a *SlogAdapter) Errorf(format string, args ...interface{}) {
	a.logger.Error(format1(format, args))
}

// Warningf logs a formatted message at warn level.
func (a *SlogAdapter) Warningf(format string, args ...interface{}) {
	a.logger.Warn(format1(format, args))
}

// Infof logs a formatted message at debug level. Storage engines report
// compaction and value-log housekeeping here.
func (a *SlogAdapter) Infof(format string, args ...interface{}) {
	a.logger.Debug(format1(format, args))
}

// Debugf logs a formatted message at debug level.
func (a *SlogAdapter) Debugf(format string, args ...interface{}) {
	a.logger.Debug(format1(format, args))
}

// Logger returns the underlying slog.Logger for direct access when needed.
func (a *SlogAdapter) Logger() *slog.Logger {
	return a.logger
}

// DefaultLogger returns an adapter over the default slog.Logger.
func DefaultLogger() *SlogAdapter {
	return NewSlogAdapter(slog.Default())
}

func format1(format string, args []interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
