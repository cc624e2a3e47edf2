package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saijash84/CalMate/internal/instrumentation"
)

func newInstrumentation(t *testing.T, config instrumentation.Config) *instrumentation.Provider {
	t.Helper()
	config.ServiceName = "calmate-test"
	p, err := instrumentation.NewProvider(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func prometheusProvider(t *testing.T) *instrumentation.Provider {
	return newInstrumentation(t, instrumentation.Config{
		Enabled:         true,
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	})
}

func TestNewMetricsServerRequiresPrometheus(t *testing.T) {
	_, err := NewMetricsServer(":0", nil, discardLogger())
	assert.ErrorIs(t, err, ErrNoPrometheusExporter)

	disabled := newInstrumentation(t, instrumentation.Config{Enabled: false})
	_, err = NewMetricsServer(":0", disabled, discardLogger())
	assert.ErrorIs(t, err, ErrNoPrometheusExporter)

	s, err := NewMetricsServer("", prometheusProvider(t), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMetricsAddr, s.Addr())
}

func TestMetricsServerHandler(t *testing.T) {
	p := prometheusProvider(t)
	p.Metrics().RecordTurn(context.Background(), "book", "success", "", time.Millisecond)

	s, err := NewMetricsServer(":0", p, discardLogger())
	require.NoError(t, err)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "calmate_turns_total")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chat", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsServerStartAndShutdown(t *testing.T) {
	s, err := NewMetricsServer("127.0.0.1:0", prometheusProvider(t), discardLogger())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	require.Eventually(t, func() bool { return s.Addr() != "127.0.0.1:0" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, http.ErrServerClosed))
	case <-time.After(2 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

func TestMetricsServerShutdownBeforeStart(t *testing.T) {
	s, err := NewMetricsServer(":0", prometheusProvider(t), discardLogger())
	require.NoError(t, err)
	assert.NoError(t, s.Shutdown(context.Background()))
}
