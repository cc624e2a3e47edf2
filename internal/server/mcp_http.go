package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Saijash84/CalMate/internal/logging"
)

// MCP transports served over HTTP.
const (
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// MCPHTTPConfig configures the HTTP front end of the MCP server.
type MCPHTTPConfig struct {
	// Transport is TransportSSE or TransportStreamableHTTP.
	Transport string

	// BaseURL is the public URL clients reach the server on. It must be
	// HTTPS unless it is a loopback address when a bearer token is set.
	BaseURL string

	// BearerToken, when set, is required on every MCP request.
	BearerToken string

	RateLimit int
	RateBurst int

	DisableStreaming bool
}

// MCPHTTPServer exposes the MCP tools over HTTP with optional bearer
// authentication and per-client rate limiting.
type MCPHTTPServer struct {
	sc         *ServerContext
	mcpServer  *mcpserver.MCPServer
	config     MCPHTTPConfig
	limiter    *RateLimiter
	health     *HealthChecker
	httpServer *http.Server
}

// NewMCPHTTPServer creates the HTTP server for the given MCP server.
func NewMCPHTTPServer(sc *ServerContext, mcpServer *mcpserver.MCPServer, config MCPHTTPConfig) (*MCPHTTPServer, error) {
	switch config.Transport {
	case TransportSSE, TransportStreamableHTTP:
	default:
		return nil, fmt.Errorf("unsupported server type: %s", config.Transport)
	}
	if config.BearerToken != "" {
		if err := validateHTTPSRequirement(config.BaseURL); err != nil {
			return nil, err
		}
	}
	return &MCPHTTPServer{
		sc:        sc,
		mcpServer: mcpServer,
		config:    config,
		limiter:   NewRateLimiter(config.RateLimit, config.RateBurst),
		health:    NewHealthChecker(sc),
	}, nil
}

// Handler returns the mux serving the configured transport. Health probes
// are neither authenticated nor rate limited.
func (s *MCPHTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.health.RegisterHealthEndpoints(mux)

	switch s.config.Transport {
	case TransportSSE:
		sseServer := mcpserver.NewSSEServer(s.mcpServer,
			mcpserver.WithBaseURL(s.config.BaseURL),
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/message"),
		)
		mux.Handle("/sse", s.wrap(sseServer))
		mux.Handle("/message", s.wrap(sseServer))

	case TransportStreamableHTTP:
		opts := []mcpserver.StreamableHTTPOption{mcpserver.WithEndpointPath("/mcp")}
		if s.config.DisableStreaming {
			opts = append(opts, mcpserver.WithDisableStreaming(true))
		}
		mux.Handle("/mcp", s.wrap(mcpserver.NewStreamableHTTPServer(s.mcpServer, opts...)))
	}
	return mux
}

// Start serves MCP on addr until Shutdown.
func (s *MCPHTTPServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.sc.Logger().Info("starting MCP server", "addr", addr, "transport", s.config.Transport)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *MCPHTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *MCPHTTPServer) wrap(next http.Handler) http.Handler {
	return s.instrumentationMiddleware(s.rateLimitMiddleware(s.authMiddleware(next)))
}

func (s *MCPHTTPServer) authMiddleware(next http.Handler) http.Handler {
	if s.config.BearerToken == "" {
		return next
	}
	want := []byte(s.config.BearerToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="calmate"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *MCPHTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			http.Error(w, "rate limit exceeded, try again later", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// instrumentationMiddleware records request metrics for MCP endpoints.
func (s *MCPHTTPServer) instrumentationMiddleware(next http.Handler) http.Handler {
	if s.sc == nil || s.sc.Metrics() == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)
		s.sc.Metrics().RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rw.statusCode, time.Since(start))
		if rw.statusCode >= http.StatusInternalServerError {
			s.sc.Logger().Warn("mcp request failed", "path", r.URL.Path, logging.Status(http.StatusText(rw.statusCode)))
		}
	})
}

// responseWriter captures the status code for metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE and streaming responses working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

// validateHTTPSRequirement keeps bearer tokens off plaintext links.
// Allows HTTP only for loopback addresses (localhost, 127.0.0.1, ::1)
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("bearer authentication requires HTTPS (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}
