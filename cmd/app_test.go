package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saijash84/CalMate/internal/assistant"
	"github.com/Saijash84/CalMate/internal/config"
)

func TestBuildApp_Defaults(t *testing.T) {
	cfg := testConfig(t)

	a, err := buildApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.True(t, a.sc.Assistant().Simulated())
	assert.IsType(t, &assistant.MemorySessionStore{}, a.sessions)
	assert.NoError(t, a.store.Ping(context.Background()))

	resp := a.sc.Assistant().Handle(context.Background(), assistant.Request{Message: "help"})
	assert.NotEmpty(t, resp.Response)
}

func TestBuildApp_CalendarWithoutToken(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg := testConfig(t)
	cfg.Calendar.Enabled = true
	cfg.Calendar.Account = "nobody"

	a, err := buildApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.True(t, a.sc.Assistant().Simulated())
}

func TestBuildApp_UnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.Backend = config.SessionRedis
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := buildApp(context.Background(), cfg, discardLogger())
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestAppClose(t *testing.T) {
	a, err := buildApp(context.Background(), testConfig(t), discardLogger())
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.True(t, a.sc.IsShutdown())
	assert.NoError(t, a.Close())
}

func TestTelemetryConfig(t *testing.T) {
	tc := config.TelemetryConfig{
		Enabled:           true,
		MetricsExporter:   "otlp",
		TracingExporter:   "otlp",
		OTLPEndpoint:      "collector:4318",
		TraceSamplingRate: 0.25,
		AuditEnabled:      true,
		AuditIncludePII:   true,
	}

	c := telemetryConfig(tc, discardLogger())
	require.NoError(t, c.Validate())
	assert.Equal(t, "calmate", c.ServiceName)
	assert.Equal(t, version, c.ServiceVersion)
	assert.Equal(t, "collector:4318", c.OTLPEndpoint)
	assert.InDelta(t, 0.25, c.TraceSamplingRate, 1e-9)
	assert.True(t, c.AuditLogging.IncludePII)
	assert.NotNil(t, c.ExporterOutput)
}

func TestBuildApp_InvalidTelemetry(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telemetry.TracingExporter = "otlp"

	_, err := buildApp(context.Background(), cfg, discardLogger())
	assert.ErrorContains(t, err, "OTLP endpoint is required")
}
