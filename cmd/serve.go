package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Saijash84/CalMate/internal/config"
	"github.com/Saijash84/CalMate/internal/resources"
	"github.com/Saijash84/CalMate/internal/server"
	"github.com/Saijash84/CalMate/internal/tools/assistant_tools"
)

// Transports accepted by serve.
const (
	transportHTTP  = "http"
	transportStdio = "stdio"
)

func newServeCmd() *cobra.Command {
	var (
		transport        string
		disableStreaming bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat API or the MCP server",
		Long: `Start calmate as a long running service.

Supports multiple transport types:
  - http: JSON chat API with a websocket stream (default)
  - stdio: MCP over standard input/output
  - streamable-http: MCP over streamable HTTP
  - sse: MCP over server-sent events

Bookings are kept in BadgerDB by default (store.backend=mongo for MongoDB) and
conversation state in memory (session.backend=redis to share it between
processes). Set calendar.enabled=true after "calmate auth save" to mirror
bookings to Google Calendar; without it calmate runs in simulation mode.

Every flag can also be set in calmate.yaml or through CALMATE_ env vars,
e.g. CALMATE_HTTP_ADDR=:9000.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return runServe(transport, cfg, disableStreaming)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", transportHTTP, "Transport type: http, stdio, streamable-http or sse")
	cmd.Flags().String("http-addr", ":8080", "Chat API listen address")
	cmd.Flags().String("cors-origins", "", "Comma separated browser origins allowed on the chat API (default: all)")
	cmd.Flags().String("mcp-addr", ":8081", "MCP HTTP listen address (streamable-http and sse)")
	cmd.Flags().String("base-url", "", "Public base URL of the MCP HTTP server")
	cmd.Flags().String("bearer-token", "", "Bearer token required on MCP HTTP requests")
	cmd.Flags().BoolVar(&disableStreaming, "disable-streaming", false, "Disable streaming for the streamable-http transport")
	cmd.Flags().Bool("metrics-enabled", false, "Enable the metrics server on a dedicated port")
	cmd.Flags().String("metrics-addr", server.DefaultMetricsAddr, "Metrics server address")

	bindFlags(cmd, map[string]string{
		"http.addr":         "http-addr",
		"http.cors_origins": "cors-origins",
		"mcp.addr":          "mcp-addr",
		"mcp.base_url":      "base-url",
		"mcp.bearer_token":  "bearer-token",
		"metrics.enabled":   "metrics-enabled",
		"metrics.addr":      "metrics-addr",
	})

	return cmd
}

// bindFlags binds config keys to the named flags of cmd. A flag only wins
// over the config file and environment when it is set explicitly.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func runServe(transport string, cfg *config.Config, disableStreaming bool) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The default logger writes to stderr, so stdout stays free for stdio.
	logger := slog.Default()

	a, err := buildApp(shutdownCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("error during shutdown", "error", err)
		}
	}()

	switch transport {
	case transportHTTP:
		return runHTTPServer(shutdownCtx, a)
	case transportStdio:
		return runStdioServer(newMCPServer(a))
	case server.TransportStreamableHTTP, server.TransportSSE:
		return runMCPHTTPServer(shutdownCtx, a, transport, disableStreaming)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: http, stdio, streamable-http, sse)", transport)
	}
}

// newMCPServer creates the MCP server with every calmate tool registered.
func newMCPServer(a *app) *mcpserver.MCPServer {
	mcpSrv := mcpserver.NewMCPServer("calmate", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)
	// Registration only fails on programming errors.
	if err := assistant_tools.RegisterAssistantTools(mcpSrv, a.sc); err != nil {
		panic(fmt.Sprintf("failed to register tools: %v", err))
	}
	if err := resources.RegisterBookingResources(mcpSrv, a.sc); err != nil {
		panic(fmt.Sprintf("failed to register resources: %v", err))
	}
	return mcpSrv
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// stoppable is a server run under runServers.
type stoppable struct {
	name     string
	start    func() error
	shutdown func(ctx context.Context) error
}

// runServers starts every server and shuts them all down when ctx is done or
// any of them fails.
func runServers(ctx context.Context, logger *slog.Logger, servers ...stoppable) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error {
			if err := s.start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server: %w", s.name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		var errs []error
		for _, s := range servers {
			if err := s.shutdown(shutdownCtx); err != nil {
				logger.Error("error during shutdown", "server", s.name, "error", err)
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}

func runHTTPServer(ctx context.Context, a *app) error {
	cfg := a.cfg
	sc := a.sc

	sessions := server.NewSessionTracker(cfg.Session.TTL, sc.Metrics(), a.logger, func(sessionID string) {
		if err := sc.Assistant().ForgetSession(context.Background(), sessionID); err != nil {
			a.logger.Warn("failed to clear expired session", "error", err)
		}
	})
	health := server.NewHealthChecker(sc)

	api := server.NewAPIServer(sc, sessions, health, server.APIConfig{
		Addr:        cfg.HTTP.Addr,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		RateLimit:   cfg.HTTP.RateLimit,
		RateBurst:   cfg.HTTP.RateBurst,
		Debug:       debugMode,
	})

	servers := []stoppable{{name: "api", start: api.Start, shutdown: api.Shutdown}}
	metricsServer, err := newMetricsServer(a)
	if err != nil {
		return err
	}
	if metricsServer != nil {
		servers = append(servers, stoppable{name: "metrics", start: metricsServer.Start, shutdown: metricsServer.Shutdown})
	}

	if sc.Assistant().Simulated() {
		a.logger.Warn("no calendar provider configured, bookings are kept locally only")
	}
	return runServers(ctx, a.logger, servers...)
}

func runMCPHTTPServer(ctx context.Context, a *app, transport string, disableStreaming bool) error {
	cfg := a.cfg
	mcpHTTP, err := server.NewMCPHTTPServer(a.sc, newMCPServer(a), server.MCPHTTPConfig{
		Transport:        transport,
		BaseURL:          cfg.MCP.BaseURL,
		BearerToken:      cfg.MCP.BearerToken,
		RateLimit:        cfg.HTTP.RateLimit,
		RateBurst:        cfg.HTTP.RateBurst,
		DisableStreaming: disableStreaming,
	})
	if err != nil {
		return err
	}
	if cfg.MCP.BearerToken == "" {
		a.logger.Warn("MCP HTTP server is running without authentication, set mcp.bearer_token to require a token")
	}

	servers := []stoppable{{
		name:     "mcp",
		start:    func() error { return mcpHTTP.Start(cfg.MCP.Addr) },
		shutdown: mcpHTTP.Shutdown,
	}}
	metricsServer, err := newMetricsServer(a)
	if err != nil {
		return err
	}
	if metricsServer != nil {
		servers = append(servers, stoppable{name: "metrics", start: metricsServer.Start, shutdown: metricsServer.Shutdown})
	}
	return runServers(ctx, a.logger, servers...)
}

// newMetricsServer returns nil when metrics are disabled.
func newMetricsServer(a *app) (*server.MetricsServer, error) {
	if !a.cfg.Metrics.Enabled || !a.provider.Enabled() {
		return nil, nil
	}
	metricsServer, err := server.NewMetricsServer(a.cfg.Metrics.Addr, a.provider, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}
	return metricsServer, nil
}
