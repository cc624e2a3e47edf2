package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHTTPSRequirement(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "valid HTTPS URL", baseURL: "https://mcp.example.com"},
		{name: "valid HTTP localhost", baseURL: "http://localhost:8080"},
		{name: "valid HTTP 127.0.0.1", baseURL: "http://127.0.0.1:8080"},
		{name: "valid HTTP ::1 (IPv6 loopback)", baseURL: "http://[::1]:8080"},
		{name: "invalid HTTP non-localhost", baseURL: "http://mcp.example.com", wantErr: true},
		{name: "invalid HTTP with localhost substring", baseURL: "http://localhost.example.com", wantErr: true},
		{name: "empty URL", baseURL: "", wantErr: true},
		{name: "invalid scheme", baseURL: "ftp://example.com", wantErr: true},
		{name: "HTTPS with path", baseURL: "https://mcp.example.com/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTPSRequirement(tt.baseURL)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateHTTPSRequirement() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewMCPHTTPServer(t *testing.T) {
	sc := newTestServerContext(t)
	mcpSrv := mcpserver.NewMCPServer("calmate", "test")

	_, err := NewMCPHTTPServer(sc, mcpSrv, MCPHTTPConfig{Transport: "grpc"})
	assert.Error(t, err)

	_, err = NewMCPHTTPServer(sc, mcpSrv, MCPHTTPConfig{
		Transport:   TransportStreamableHTTP,
		BaseURL:     "http://mcp.example.com",
		BearerToken: "secret",
	})
	assert.Error(t, err, "bearer tokens need https")

	_, err = NewMCPHTTPServer(sc, mcpSrv, MCPHTTPConfig{Transport: TransportSSE})
	assert.NoError(t, err)
}

func TestMCPHTTPServer_Auth(t *testing.T) {
	sc := newTestServerContext(t)
	srv, err := NewMCPHTTPServer(sc, mcpserver.NewMCPServer("calmate", "test"), MCPHTTPConfig{
		Transport:   TransportStreamableHTTP,
		BaseURL:     "http://localhost:8081",
		BearerToken: "secret",
	})
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := srv.wrap(next)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic secret", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer secret", want: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMCPHTTPServer_RateLimit(t *testing.T) {
	sc := newTestServerContext(t)
	srv, err := NewMCPHTTPServer(sc, mcpserver.NewMCPServer("calmate", "test"), MCPHTTPConfig{
		Transport: TransportStreamableHTTP,
		RateLimit: 1,
		RateBurst: 1,
	})
	require.NoError(t, err)

	handler := srv.wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)
	assert.Equal(t, http.StatusOK, rw.statusCode)

	rw.WriteHeader(http.StatusTeapot)
	rw.Flush()
	assert.Equal(t, http.StatusTeapot, rw.statusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.True(t, rec.Flushed)
}

func TestInstrumentationMiddlewareWithoutContext(t *testing.T) {
	called := false
	handler := (&MCPHTTPServer{}).instrumentationMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/mcp", nil))
	assert.True(t, called)
}

func TestMCPHTTPServer_HealthBypassesAuth(t *testing.T) {
	sc := newTestServerContext(t)
	srv, err := NewMCPHTTPServer(sc, mcpserver.NewMCPServer("calmate", "test"), MCPHTTPConfig{
		Transport:   TransportStreamableHTTP,
		BaseURL:     "http://127.0.0.1:8081",
		BearerToken: "secret",
	})
	require.NoError(t, err)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.NoError(t, srv.Shutdown(context.Background()))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "10.0.0.7", clientIP(req))

	req.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "[::1]", clientIP(req))
}
