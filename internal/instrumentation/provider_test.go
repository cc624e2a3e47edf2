package instrumentation

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(metrics, tracing string) Config {
	c := DefaultConfig()
	c.ServiceVersion = "1.0.0"
	c.InstanceID = "test-instance"
	c.MetricsExporter = metrics
	c.TracingExporter = tracing
	c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return c
}

func TestNewProviderDisabled(t *testing.T) {
	c := testConfig("bogus", "bogus")
	c.Enabled = false

	p, err := NewProvider(context.Background(), c)
	require.NoError(t, err, "a disabled provider skips validation")

	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Metrics())
	assert.Nil(t, p.MetricsHandler())
	assert.NotNil(t, p.Tracer(""))
	assert.NoError(t, p.Shutdown(context.Background()))

	// No-op recorders must not panic.
	p.Metrics().RecordTurn(context.Background(), "book", "success", "s1", time.Millisecond)
	p.Metrics().IncrementActiveSessions(context.Background())
}

func TestNewProviderPrometheus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := NewProvider(ctx, testConfig(ExporterPrometheus, ExporterNone))
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(ctx) }()

	assert.True(t, p.Enabled())
	assert.NotNil(t, p.Metrics())
	assert.NotNil(t, p.MetricsHandler())

	_, span := p.Tracer("").Start(ctx, "never-sampled")
	assert.False(t, span.SpanContext().IsSampled())
	span.End()
}

func TestNewProviderStdoutWritesToConfiguredOutput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	c := testConfig(ExporterStdout, ExporterStdout)
	c.TraceSamplingRate = 1
	c.ExporterOutput = &out

	p, err := NewProvider(ctx, c)
	require.NoError(t, err)
	assert.Nil(t, p.MetricsHandler(), "stdout exporter has no scrape handler")

	_, span := p.Tracer("test").Start(ctx, "turn")
	span.End()
	p.Metrics().RecordBookingMutation(ctx, MutationBook, StatusSuccess)

	require.NoError(t, p.Shutdown(ctx))
	assert.Contains(t, out.String(), `"Name":"turn"`)
	assert.Contains(t, out.String(), "calmate_booking_mutations_total")
}

func TestNewProviderRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"metrics exporter", testConfig("invalid", ExporterNone), "invalid metrics exporter"},
		{"tracing exporter", testConfig(ExporterPrometheus, "invalid"), "invalid tracing exporter"},
		{"otlp without endpoint", testConfig(ExporterPrometheus, ExporterOTLP), "OTLP endpoint is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewProviderOTLPInsecureWarns(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var logs bytes.Buffer
	c := testConfig(ExporterPrometheus, ExporterOTLP)
	c.OTLPEndpoint = "127.0.0.1:1"
	c.OTLPInsecure = true
	c.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	p, err := NewProvider(ctx, c)
	require.NoError(t, err, "exporters connect lazily")

	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancelShutdown()
	_ = p.Shutdown(shutdownCtx)

	assert.Contains(t, logs.String(), "OTLP insecure transport enabled")
}

func TestProviderTracerDefaultName(t *testing.T) {
	p, err := NewProvider(context.Background(), testConfig(ExporterPrometheus, ExporterNone))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	assert.NotNil(t, p.Tracer(""))
	assert.NotNil(t, p.Tracer("custom"))
}
