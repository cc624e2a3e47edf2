package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Saijash84/CalMate/internal/availability"
	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/google"
	"github.com/Saijash84/CalMate/internal/instrumentation"
	"github.com/Saijash84/CalMate/internal/logging"
)

// DefaultCalendarID is the calendar written to when none is configured.
const DefaultCalendarID = "primary"

// Client wraps the Google Calendar service for one account and calendar.
type Client struct {
	svc        *calendar.Service
	account    string
	calendarID string
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCalendarID selects the calendar the client reads and writes.
func WithCalendarID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.calendarID = id
		}
	}
}

// WithMetrics records provider call metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Account returns the account name this client is associated with
func (c *Client) Account() string {
	return c.account
}

// CalendarID returns the calendar the client operates on.
func (c *Client) CalendarID() string {
	return c.calendarID
}

// HasTokenForAccountWithProvider checks if a valid OAuth token exists for the specified account
func HasTokenForAccountWithProvider(account string, provider google.TokenProvider) bool {
	if provider == nil {
		return false
	}
	return provider.HasTokenForAccount(account)
}

// HasTokenForAccount checks if a valid OAuth token exists for the specified account
func HasTokenForAccount(account string) bool {
	return HasTokenForAccountWithProvider(account, google.NewFileTokenProvider())
}

// NewClientForAccountWithProvider creates a Calendar client authenticated
// with the token the provider holds for account.
func NewClientForAccountWithProvider(ctx context.Context, account string, tokenProvider google.TokenProvider, opts ...Option) (*Client, error) {
	if tokenProvider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	token, err := tokenProvider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	httpClient := google.NewHTTPClient(ctx, google.GetOAuthConfig().TokenSource(ctx, token))
	return newClient(ctx, account, httpClient, nil, opts...)
}

// NewClientForAccount creates a Calendar client using the file token store.
func NewClientForAccount(ctx context.Context, account string, opts ...Option) (*Client, error) {
	return NewClientForAccountWithProvider(ctx, account, google.NewFileTokenProvider(), opts...)
}

// NewClientWithEndpoint creates a client against an explicit API endpoint
// using the given HTTP client. It is used with local API emulators.
func NewClientWithEndpoint(ctx context.Context, account, endpoint string, httpClient *http.Client, opts ...Option) (*Client, error) {
	return newClient(ctx, account, httpClient, []option.ClientOption{option.WithEndpoint(endpoint)}, opts...)
}

func newClient(ctx context.Context, account string, httpClient *http.Client, extra []option.ClientOption, opts ...Option) (*Client, error) {
	clientOpts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, extra...)
	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	c := &Client{
		svc:        svc,
		account:    account,
		calendarID: DefaultCalendarID,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithService(c.logger, "calendar").With(logging.Account(account))
	return c, nil
}

// observe wraps one API call with a span, metrics and a debug log line.
func (c *Client) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartCalendarSpan(ctx, c.calendarID, op)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordCalendarOperation(ctx, op, status, time.Since(start))
	c.logger.Debug("calendar call",
		logging.Operation(op),
		logging.Status(status),
		slog.Duration(logging.KeyDuration, time.Since(start)),
		logging.Err(err))
	return err
}

// ListEvents lists single (expanded) events within a time range.
func (c *Client) ListEvents(ctx context.Context, timeMin, timeMax time.Time, query string) ([]EventSummary, error) {
	var summaries []EventSummary
	err := c.observe(ctx, instrumentation.OperationList, func(ctx context.Context) error {
		call := c.svc.Events.List(c.calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if query != "" {
			call = call.Q(query)
		}
		return call.Pages(ctx, func(page *calendar.Events) error {
			for _, event := range page.Items {
				summaries = append(summaries, toEventSummary(event))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return summaries, nil
}

// GetEvent retrieves a specific event by ID
func (c *Client) GetEvent(ctx context.Context, eventID string) (*EventSummary, error) {
	var event *calendar.Event
	err := c.observe(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		var err error
		event, err = c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	summary := toEventSummary(event)
	return &summary, nil
}

// InsertEvent creates a new calendar event
func (c *Client) InsertEvent(ctx context.Context, input EventInput) (*EventSummary, error) {
	var created *calendar.Event
	err := c.observe(ctx, instrumentation.OperationCreate, func(ctx context.Context) error {
		var err error
		created, err = c.svc.Events.Insert(c.calendarID, toEvent(input)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	summary := toEventSummary(created)
	return &summary, nil
}

// PatchEvent updates the summary, times and description of an existing event.
// Attendees are replaced only when input carries some.
func (c *Client) PatchEvent(ctx context.Context, eventID string, input EventInput) (*EventSummary, error) {
	patch := &calendar.Event{
		Summary: input.Summary,
	}
	if !input.Start.IsZero() {
		patch.Start = toEventDateTime(input.Start, input.TimeZone)
	}
	if !input.End.IsZero() {
		patch.End = toEventDateTime(input.End, input.TimeZone)
	}
	if input.Description != "" {
		patch.Description = input.Description
	}
	for _, email := range input.Attendees {
		patch.Attendees = append(patch.Attendees, &calendar.EventAttendee{Email: email})
	}

	var updated *calendar.Event
	err := c.observe(ctx, instrumentation.OperationUpdate, func(ctx context.Context) error {
		var err error
		updated, err = c.svc.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	summary := toEventSummary(updated)
	return &summary, nil
}

// RemoveEvent deletes a calendar event. Events that are already gone are
// not an error.
func (c *Client) RemoveEvent(ctx context.Context, eventID string) error {
	err := c.observe(ctx, instrumentation.OperationDelete, func(ctx context.Context) error {
		err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
		if isGone(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}

// CreateEvent writes a booking draft to the calendar and returns the event ID.
func (c *Client) CreateEvent(ctx context.Context, d booking.Draft) (string, error) {
	created, err := c.InsertEvent(ctx, inputFromDraft(d))
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdateEvent moves or renames the event backing a booking.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, d booking.Draft) error {
	_, err := c.PatchEvent(ctx, eventID, inputFromDraft(d))
	return err
}

// DeleteEvent removes the event backing a booking.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	return c.RemoveEvent(ctx, eventID)
}

// ListCalendars lists all calendars accessible to the user
func (c *Client) ListCalendars(ctx context.Context) ([]CalendarInfo, error) {
	var calendars []CalendarInfo
	err := c.observe(ctx, instrumentation.OperationList, func(ctx context.Context) error {
		list, err := c.svc.CalendarList.List().Context(ctx).Do()
		if err != nil {
			return err
		}
		for _, entry := range list.Items {
			calendars = append(calendars, toCalendarInfo(entry))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return calendars, nil
}

// QueryFreeBusy checks availability for calendars in a time range
func (c *Client) QueryFreeBusy(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]FreeBusyInfo, error) {
	items := make([]*calendar.FreeBusyRequestItem, len(calendarIDs))
	for i, id := range calendarIDs {
		items[i] = &calendar.FreeBusyRequestItem{Id: id}
	}
	query := &calendar.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   items,
	}

	var result *calendar.FreeBusyResponse
	err := c.observe(ctx, instrumentation.OperationFreeBusy, func(ctx context.Context) error {
		var err error
		result, err = c.svc.Freebusy.Query(query).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", err)
	}

	var infos []FreeBusyInfo
	for calID, cal := range result.Calendars {
		info := FreeBusyInfo{Calendar: calID}
		for _, busy := range cal.Busy {
			start, err1 := time.Parse(time.RFC3339, busy.Start)
			end, err2 := time.Parse(time.RFC3339, busy.End)
			if err1 != nil || err2 != nil {
				continue
			}
			info.Busy = append(info.Busy, TimeRange{Start: start, End: end})
		}
		for _, e := range cal.Errors {
			info.Errors = append(info.Errors, e.Reason)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Calendar < infos[j].Calendar })
	return infos, nil
}

// BusyIntervals reports the calendar's busy time in [start, end). Events are
// listed so intervals carry a summary; if listing fails the free/busy query
// is used instead and intervals are unlabeled.
func (c *Client) BusyIntervals(ctx context.Context, start, end time.Time) ([]availability.Busy, error) {
	events, err := c.ListEvents(ctx, start, end, "")
	if err == nil {
		var out []availability.Busy
		for _, e := range events {
			if !e.Busy() {
				continue
			}
			out = append(out, availability.Busy{
				Interval: availability.Interval{Start: e.Start, End: e.End},
				Summary:  e.Summary,
				EventID:  e.ID,
				Source:   availability.SourceCalendar,
			})
		}
		return out, nil
	}

	c.logger.Warn("event listing failed, falling back to free/busy", logging.Err(err))
	infos, fbErr := c.QueryFreeBusy(ctx, start, end, []string{c.calendarID})
	if fbErr != nil {
		return nil, errors.Join(err, fbErr)
	}
	var out []availability.Busy
	for _, info := range infos {
		for _, r := range info.Busy {
			out = append(out, availability.Busy{
				Interval: availability.Interval{Start: r.Start, End: r.End},
				Source:   availability.SourceCalendar,
			})
		}
	}
	return out, nil
}
