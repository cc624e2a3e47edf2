package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/Saijash84/CalMate/internal/availability"
	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/instrumentation"
	"github.com/Saijash84/CalMate/internal/logging"
	"github.com/Saijash84/CalMate/internal/nlu"
)

// Response operations.
const (
	OpSuccess  = "success"
	OpClarify  = "clarify"
	OpConflict = "conflict"
	OpBusy     = "busy"
	OpNotFound = "not_found"
	OpWarning  = "warning"
	OpError    = "error"
	OpInfo     = "info"
)

// Defaults for Config fields left zero.
const (
	DefaultAlternativesWindow = 2 * time.Hour
	DefaultMaxAlternatives    = 3
)

// Request is one inbound chat turn.
type Request struct {
	SessionID string        `json:"session_id,omitempty"`
	Message   string        `json:"message"`
	History   []nlu.Message `json:"history,omitempty"`
}

// Response is the reply to a turn. Response always carries user-facing text;
// Operation and Details carry the structured form.
type Response struct {
	Response     string                  `json:"response"`
	Operation    string                  `json:"operation"`
	Details      string                  `json:"details,omitempty"`
	Intent       nlu.Intent              `json:"intent"`
	Booking      *booking.Booking        `json:"booking,omitempty"`
	Bookings     []booking.Booking       `json:"bookings,omitempty"`
	Conflicts    []availability.Busy     `json:"conflicts,omitempty"`
	Alternatives []availability.Interval `json:"alternatives,omitempty"`
}

// Config wires an Assistant to its collaborators. Only Store is required.
type Config struct {
	Store booking.Store
	// Provider is the external calendar. Nil runs in simulation mode.
	Provider CalendarProvider
	// Sessions holds structured per-session context. Nil disables it and
	// context comes from the chat history alone.
	Sessions SessionStore
	// Engine defaults to one built over Store and Provider.
	Engine  *availability.Engine
	Clock   func() time.Time
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger

	Step               time.Duration
	AlternativesWindow time.Duration
	MaxAlternatives    int
	// ListActiveOnly hides cancelled bookings from list replies.
	ListActiveOnly bool
}

// Assistant is the scheduling orchestrator. It is safe for concurrent use;
// all state lives in the configured stores.
type Assistant struct {
	store    booking.Store
	provider CalendarProvider
	sessions SessionStore
	engine   *availability.Engine
	clock    func() time.Time
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	audit    *instrumentation.AuditLogger

	altWindow      time.Duration
	maxAlts        int
	listActiveOnly bool
}

// New creates an Assistant.
func New(cfg Config) (*Assistant, error) {
	if cfg.Store == nil {
		return nil, errors.New("assistant: booking store is required")
	}
	a := &Assistant{
		store:          cfg.Store,
		provider:       cfg.Provider,
		sessions:       cfg.Sessions,
		engine:         cfg.Engine,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		audit:          cfg.Audit,
		altWindow:      cfg.AlternativesWindow,
		maxAlts:        cfg.MaxAlternatives,
		listActiveOnly: cfg.ListActiveOnly,
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = logging.WithService(a.logger, "assistant")
	if a.clock == nil {
		a.clock = time.Now
	}
	if a.altWindow <= 0 {
		a.altWindow = DefaultAlternativesWindow
	}
	if a.maxAlts <= 0 {
		a.maxAlts = DefaultMaxAlternatives
	}
	if a.engine == nil {
		opts := []availability.Option{availability.WithLogger(cfg.Logger), availability.WithStep(cfg.Step)}
		if cfg.Provider != nil {
			opts = append(opts, availability.WithBusySource(cfg.Provider))
		}
		a.engine = availability.NewEngine(cfg.Store, opts...)
	}
	return a, nil
}

// Engine returns the availability engine the assistant uses.
func (a *Assistant) Engine() *availability.Engine {
	return a.engine
}

// Simulated reports whether the assistant runs without a calendar provider.
func (a *Assistant) Simulated() bool {
	return a.provider == nil
}

// ForgetSession drops the stored context of a session.
func (a *Assistant) ForgetSession(ctx context.Context, sessionID string) error {
	if a.sessions == nil {
		return nil
	}
	return a.sessions.Delete(ctx, sessionID)
}

// Handle runs one conversation turn. It always returns a reply: failures and
// panics become an OpError response.
func (a *Assistant) Handle(ctx context.Context, req Request) (resp Response) {
	started := time.Now()
	intent := nlu.Classify(req.Message)
	logger := a.logger.With(logging.Intent(intent.String()))
	if req.SessionID != "" {
		logger = logger.With(logging.Session(req.SessionID))
	}

	ctx, span := instrumentation.StartTurnSpan(ctx, instrumentation.NewSpanAttributeBuilder().
		WithIntent(intent.String()).
		WithSession(logging.SessionHash(req.SessionID)).
		WithSimulated(a.Simulated()).
		Build()...)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling turn", "panic", r, "stack", string(debug.Stack()))
			resp = errorResponse(intent, fmt.Errorf("internal error: %v", r))
		}
		span.SetAttributes(instrumentation.NewSpanAttributeBuilder().WithOutcome(resp.Operation).Build()...)
		if resp.Operation == OpError {
			instrumentation.SetSpanError(span, errors.New(resp.Details))
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		a.metrics.RecordTurn(ctx, intent.String(), instrumentation.OutcomeLabel(resp.Operation), req.SessionID, time.Since(started))
		logger.Debug("turn handled",
			logging.Status(resp.Operation),
			slog.Duration(logging.KeyDuration, time.Since(started)))
	}()

	now := a.clock()
	cev := a.loadContext(ctx, req, now)
	slots := nlu.Extract(req.Message, cev, now)

	t := &turn{
		req:    req,
		intent: intent,
		slots:  slots,
		ctxEv:  cev,
		now:    now,
		logger: logger,
	}

	var err error
	switch intent {
	case nlu.IntentBook:
		resp, err = a.book(ctx, t)
	case nlu.IntentCancel:
		resp, err = a.cancel(ctx, t)
	case nlu.IntentEdit:
		resp, err = a.edit(ctx, t)
	case nlu.IntentList:
		resp, err = a.list(ctx, t)
	case nlu.IntentCheck:
		resp, err = a.check(ctx, t)
	case nlu.IntentHelp:
		resp = Response{Response: helpText, Operation: OpInfo}
	default:
		resp = Response{Response: unknownText, Operation: OpInfo}
	}
	if err != nil {
		logger.Error("turn failed", logging.Err(err))
		return errorResponse(intent, err)
	}
	resp.Intent = intent
	return resp
}

// turn carries the per-turn inputs through the intent handlers.
type turn struct {
	req    Request
	intent nlu.Intent
	slots  nlu.Slots
	ctxEv  *nlu.ContextEvent
	now    time.Time
	logger *slog.Logger
}

// loadContext prefers the structured session state and falls back to parsing
// the chat history.
func (a *Assistant) loadContext(ctx context.Context, req Request, now time.Time) *nlu.ContextEvent {
	if a.sessions != nil && req.SessionID != "" {
		ev, err := a.sessions.Load(ctx, req.SessionID)
		if err != nil {
			a.logger.Warn("session lookup failed, using chat history", logging.Session(req.SessionID), logging.Err(err))
		} else if ev != nil {
			return ev
		}
	}
	return nlu.ResolveContext(req.History, now)
}

// remember stores b as the session's context event.
func (a *Assistant) remember(ctx context.Context, sessionID string, b *booking.Booking) {
	if a.sessions == nil || sessionID == "" || b == nil {
		return
	}
	if err := a.sessions.Save(ctx, sessionID, contextFromBooking(b)); err != nil {
		a.logger.Warn("failed to save session state", logging.Session(sessionID), logging.Err(err))
	}
}

func contextFromBooking(b *booking.Booking) nlu.ContextEvent {
	return nlu.ContextEvent{
		BookingID:       b.ID,
		Summary:         b.Summary,
		Datetime:        b.Start,
		DurationMinutes: int(b.Duration() / time.Minute),
		Timezone:        b.Timezone,
		Attendees:       append([]string{}, b.Attendees...),
	}
}

// recordMutation emits the audit record and mutation metric for a store write.
func (a *Assistant) recordMutation(ctx context.Context, m *instrumentation.Mutation, err error) {
	m.WithSpanContext(ctx).Complete(err)
	a.audit.LogMutation(m)
	a.metrics.RecordBookingMutation(ctx, m.Kind, m.Status())
}

// providerOutcome turns a provider error into the simulation warning and
// logs unexpected failures.
func (a *Assistant) providerOutcome(resp *Response, logger *slog.Logger, op string, err error) bool {
	if err == nil {
		return false
	}
	if !errors.Is(err, ErrProviderUnavailable) {
		logger.Warn("calendar provider call failed, continuing in simulation mode",
			logging.Operation(op), logging.Err(err))
	}
	resp.Operation = OpWarning
	resp.Details = SimulationWarning
	return true
}

func errorResponse(intent nlu.Intent, err error) Response {
	return Response{
		Response:  errorText,
		Operation: OpError,
		Details:   err.Error(),
		Intent:    intent,
	}
}

func clarify(text string) Response {
	return Response{Response: text, Operation: OpClarify}
}
