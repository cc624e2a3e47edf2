package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Saijash84/CalMate/internal/assistant"
	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/calendar"
	"github.com/Saijash84/CalMate/internal/google"
	"github.com/Saijash84/CalMate/internal/instrumentation"
	"github.com/Saijash84/CalMate/internal/logging"
)

// ServerContextConfig holds the dependencies shared by every transport.
type ServerContextConfig struct {
	Assistant *assistant.Assistant
	Store     booking.Store

	// TokenProvider supplies Google tokens for lazily created calendar
	// clients. Defaults to the on-disk token files.
	TokenProvider   google.TokenProvider
	CalendarOptions []calendar.Option

	Instrumentation *instrumentation.Provider
	Audit           *instrumentation.AuditLogger
	Logger          *slog.Logger
}

// ServerContext holds the state shared by the chat API and the MCP server.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	assistant       *assistant.Assistant
	store           booking.Store
	tokenProvider   google.TokenProvider
	calendarOpts    []calendar.Option
	calendarClients map[string]*calendar.Client // Maps account name to calendar client
	instrumentation *instrumentation.Provider
	audit           *instrumentation.AuditLogger
	logger          *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, cfg ServerContextConfig) (*ServerContext, error) {
	if cfg.Assistant == nil {
		return nil, errors.New("assistant is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("booking store is required")
	}
	if cfg.TokenProvider == nil {
		cfg.TokenProvider = google.NewFileTokenProvider()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:             shutdownCtx,
		cancel:          cancel,
		assistant:       cfg.Assistant,
		store:           cfg.Store,
		tokenProvider:   cfg.TokenProvider,
		calendarOpts:    cfg.CalendarOptions,
		calendarClients: make(map[string]*calendar.Client),
		instrumentation: cfg.Instrumentation,
		audit:           cfg.Audit,
		logger:          logging.WithService(cfg.Logger, "server"),
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Assistant returns the scheduling assistant.
func (sc *ServerContext) Assistant() *assistant.Assistant {
	return sc.assistant
}

// Store returns the booking store.
func (sc *ServerContext) Store() booking.Store {
	return sc.store
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Audit returns the audit logger, which may be nil.
func (sc *ServerContext) Audit() *instrumentation.AuditLogger {
	return sc.audit
}

// Instrumentation returns the instrumentation provider, which may be nil.
func (sc *ServerContext) Instrumentation() *instrumentation.Provider {
	return sc.instrumentation
}

// Metrics returns the metrics recorder. The result is nil when
// instrumentation is off; Metrics methods accept a nil receiver.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	if sc.instrumentation == nil {
		return nil
	}
	return sc.instrumentation.Metrics()
}

// CalendarClientForAccount returns the calendar client for a specific account.
// Creates and caches the client if it doesn't exist yet.
// Returns nil if the account has no token.
func (sc *ServerContext) CalendarClientForAccount(account string) *calendar.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.calendarClients[account]; ok {
		return client
	}

	if !calendar.HasTokenForAccountWithProvider(account, sc.tokenProvider) {
		return nil
	}

	opts := append([]calendar.Option{calendar.WithMetrics(sc.Metrics()), calendar.WithLogger(sc.logger)}, sc.calendarOpts...)
	client, err := calendar.NewClientForAccountWithProvider(sc.ctx, account, sc.tokenProvider, opts...)
	if err != nil {
		sc.logger.Warn("failed to create calendar client", logging.Account(account), logging.Err(err))
		return nil
	}

	sc.calendarClients[account] = client
	return client
}

// SetCalendarClientForAccount sets the calendar client for a specific account
func (sc *ServerContext) SetCalendarClientForAccount(account string, client *calendar.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.calendarClients[account] = client
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context. The store is owned by the caller
// and stays open.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
