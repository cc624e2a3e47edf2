package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Saijash84/CalMate/internal/assistant"
	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/calendar"
	"github.com/Saijash84/CalMate/internal/config"
	"github.com/Saijash84/CalMate/internal/instrumentation"
	"github.com/Saijash84/CalMate/internal/server"
)

// app is the wired set of collaborators behind every command that touches
// bookings.
type app struct {
	cfg      *config.Config
	store    booking.Store
	sessions assistant.SessionStore
	provider *instrumentation.Provider
	sc       *server.ServerContext
	logger   *slog.Logger

	closers []func() error
}

// buildApp opens the configured store and session backend, connects the
// calendar provider when enabled and assembles the assistant.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	instrConfig := telemetryConfig(cfg.Telemetry, logger)
	a.provider, err = instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	a.closers = append(a.closers, func() error { return a.provider.Shutdown(context.Background()) })
	metrics := a.provider.Metrics()
	audit := instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)

	a.store, err = openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	a.sessions, err = openSessions(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	calendarOpts := []calendar.Option{
		calendar.WithCalendarID(cfg.Calendar.ID),
		calendar.WithMetrics(metrics),
		calendar.WithLogger(logger),
	}

	var provider assistant.CalendarProvider
	if cfg.Calendar.Enabled {
		client, cerr := calendar.NewClientForAccount(ctx, cfg.Calendar.Account, calendarOpts...)
		if cerr != nil {
			logger.Warn("calendar provider unavailable, running in simulation mode",
				"account", cfg.Calendar.Account, "error", cerr)
		} else {
			provider = client
		}
	}

	asst, err := assistant.New(assistant.Config{
		Store:              a.store,
		Provider:           provider,
		Sessions:           a.sessions,
		Logger:             logger,
		Metrics:            metrics,
		Audit:              audit,
		Step:               cfg.Assistant.Step(),
		AlternativesWindow: cfg.Assistant.AlternativesWindow,
		MaxAlternatives:    cfg.Assistant.MaxAlternatives,
		ListActiveOnly:     cfg.Assistant.ListActiveOnly,
	})
	if err != nil {
		return nil, err
	}

	a.sc, err = server.NewServerContext(ctx, server.ServerContextConfig{
		Assistant:       asst,
		Store:           a.store,
		CalendarOptions: calendarOpts,
		Instrumentation: a.provider,
		Audit:           audit,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	a.closers = append(a.closers, a.sc.Shutdown)
	return a, nil
}

// telemetryConfig maps the telemetry section onto the provider config. The
// stdout exporters are sent to stderr because stdout belongs to the chat
// prompt and the MCP stdio transport.
func telemetryConfig(t config.TelemetryConfig, logger *slog.Logger) instrumentation.Config {
	c := instrumentation.DefaultConfig()
	c.ServiceVersion = version
	c.Enabled = t.Enabled
	c.MetricsExporter = t.MetricsExporter
	c.TracingExporter = t.TracingExporter
	c.OTLPEndpoint = t.OTLPEndpoint
	c.OTLPInsecure = t.OTLPInsecure
	c.TraceSamplingRate = t.TraceSamplingRate
	c.DetailedLabels = t.DetailedLabels
	c.ExporterOutput = os.Stderr
	c.Logger = logger
	c.AuditLogging = instrumentation.AuditLoggingConfig{
		Enabled:    t.AuditEnabled,
		IncludePII: t.AuditIncludePII,
	}
	return c
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (booking.Store, error) {
	switch cfg.Backend {
	case config.StoreMongo:
		store, err := booking.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open mongo store: %w", err)
		}
		return store, nil
	default:
		store, err := booking.OpenBadger(cfg.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return store, nil
	}
}

func openSessions(ctx context.Context, cfg *config.Config, a *app) (assistant.SessionStore, error) {
	if cfg.Session.Backend != config.SessionRedis {
		return assistant.NewMemorySessionStore(cfg.Session.Size, cfg.Session.TTL), nil
	}
	client, err := assistant.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return assistant.NewRedisSessionStore(client, cfg.Session.TTL), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
