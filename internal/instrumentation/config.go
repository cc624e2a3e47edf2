package instrumentation

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Config selects exporters and labelling for a Provider. It is filled from
// the telemetry section of the calmate configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// InstanceID identifies this process. Empty uses the hostname.
	InstanceID string

	// Enabled turns metrics and tracing on. A disabled provider hands out
	// no-op recorders.
	Enabled bool

	// MetricsExporter is prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port of the collector, without scheme.
	OTLPEndpoint string

	// OTLPInsecure sends OTLP over plain HTTP. Development only.
	OTLPInsecure bool

	// TraceSamplingRate is the parent-based ratio sampler argument.
	TraceSamplingRate float64

	// DetailedLabels attaches hashed session ids to turn metrics.
	DetailedLabels bool

	// ExporterOutput receives the stdout exporters. The MCP stdio transport
	// owns stdout, so it points this at stderr. Nil means stdout.
	ExporterOutput io.Writer

	// Logger reports exporter warnings. Nil means slog.Default().
	Logger *slog.Logger

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the booking audit trail.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII writes raw session ids, summaries and attendees. Otherwise
	// session ids are hashed and free text is dropped.
	IncludePII bool
}

// DefaultConfig returns prometheus metrics, no tracing and audit logging
// without PII.
func DefaultConfig() Config {
	return Config{
		ServiceName:       "calmate",
		ServiceVersion:    "unknown",
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		TraceSamplingRate: 0.1,
		AuditLogging: AuditLoggingConfig{
			Enabled: true,
		},
	}
}

// Validate checks exporter names, the sampling rate and that OTLP exporters
// have an endpoint.
func (c *Config) Validate() error {
	var errs []error

	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate))
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		errs = append(errs, fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter))
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter))
	}

	if c.OTLPEndpoint == "" && (c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP) {
		errs = append(errs, errors.New("OTLP endpoint is required when using an OTLP exporter"))
	}

	return errors.Join(errs...)
}

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Constants for metric label values.
const (
	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
	StatusUnknown = "unknown"

	// Booking mutation kinds
	MutationBook   = "book"
	MutationEdit   = "edit"
	MutationCancel = "cancel"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// DefaultMetricInterval is the push interval of the periodic readers.
	DefaultMetricInterval = 10 * time.Second
)
