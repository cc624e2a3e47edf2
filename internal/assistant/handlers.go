package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Saijash84/CalMate/internal/availability"
	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/instrumentation"
	"github.com/Saijash84/CalMate/internal/logging"
	"github.com/Saijash84/CalMate/internal/nlu"
)

func (a *Assistant) book(ctx context.Context, t *turn) (Response, error) {
	s := t.slots
	if s.DurationOutOfRange {
		return clarify(durationClarifyText), nil
	}
	if s.Ambiguous {
		return clarify(bookClarifyText), nil
	}
	start := *s.Datetime
	end := start.Add(s.Duration())
	if !end.After(start) {
		return clarify(durationClarifyText), nil
	}

	all, err := a.store.List(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("listing bookings: %w", err)
	}
	if dup := activeAt(all, start, ""); dup != nil {
		return duplicateResponse(dup), nil
	}

	busy, err := a.engine.FindConflicts(ctx, start, end, nil)
	if err != nil {
		return Response{}, err
	}
	if len(busy) > 0 {
		return a.busyResponse(ctx, busy, start, s.Duration(), s.Timezone, nil)
	}

	draft := booking.Draft{
		Summary:   s.Summary,
		Start:     start,
		End:       end,
		Timezone:  s.Timezone,
		Attendees: s.Attendees,
	}
	var resp Response
	eventID, perr := a.createEvent(ctx, draft)
	a.providerOutcome(&resp, t.logger, "create", perr)
	draft.ExternalEventID = eventID

	m := instrumentation.NewMutation(instrumentation.MutationBook, t.req.SessionID).
		WithSimulated(perr != nil)
	id, err := a.store.Save(ctx, draft)
	if err != nil {
		if eventID != "" {
			// The stored booking is the source of truth; drop the orphaned event.
			if derr := a.deleteEvent(ctx, eventID); derr != nil {
				t.logger.Warn("failed to remove calendar event after store rejection", logging.Err(derr))
			}
		}
		m.WithBooking("", draft.Summary, draft.Start, draft.Timezone, draft.Attendees)
		a.recordMutation(ctx, m, err)
		if errors.Is(err, booking.ErrDuplicateStart) {
			if dup := a.activeAtStart(ctx, start); dup != nil {
				return duplicateResponse(dup), nil
			}
			return Response{Response: duplicateText, Operation: OpConflict}, nil
		}
		return Response{}, fmt.Errorf("saving booking: %w", err)
	}

	b, err := a.store.Get(ctx, id)
	if err != nil {
		return Response{}, fmt.Errorf("reading saved booking: %w", err)
	}
	m.WithBooking(b.ID, b.Summary, b.Start, b.Timezone, b.Attendees)
	a.recordMutation(ctx, m, nil)
	a.remember(ctx, t.req.SessionID, b)
	t.logger.Info("booking created", logging.BookingID(b.ID), logging.Status(resp.Operation))

	resp.Response = bookedMessage(b)
	resp.Booking = b
	if resp.Operation == "" {
		resp.Operation = OpSuccess
	}
	return resp, nil
}

func (a *Assistant) cancel(ctx context.Context, t *turn) (Response, error) {
	target, err := a.resolveTarget(ctx, t.slots.Reference, t.ctxEv)
	if err != nil {
		return Response{}, err
	}
	if target == nil {
		return Response{Response: "No matching event found to cancel.", Operation: OpNotFound}, nil
	}

	return a.cancelBooking(ctx, target, t.req.SessionID, t.logger)
}

// CancelBooking cancels the booking with the given id, outside of a
// conversational turn. Unknown and already cancelled bookings yield a
// not_found response.
func (a *Assistant) CancelBooking(ctx context.Context, id, sessionID string) (Response, error) {
	target, err := a.store.Get(ctx, id)
	if errors.Is(err, booking.ErrNotFound) || (err == nil && !target.Active()) {
		return Response{Response: fmt.Sprintf("No active booking with id %s.", id), Operation: OpNotFound}, nil
	}
	if err != nil {
		return Response{}, fmt.Errorf("loading booking: %w", err)
	}
	return a.cancelBooking(ctx, target, sessionID, a.logger.With(logging.Session(sessionID)))
}

func (a *Assistant) cancelBooking(ctx context.Context, target *booking.Booking, sessionID string, logger *slog.Logger) (Response, error) {
	m := instrumentation.NewMutation(instrumentation.MutationCancel, sessionID).
		WithBooking(target.ID, target.Summary, target.Start, target.Timezone, target.Attendees)
	if err := a.store.Cancel(ctx, target.ID); err != nil {
		a.recordMutation(ctx, m, err)
		return Response{}, fmt.Errorf("cancelling booking: %w", err)
	}

	var resp Response
	perr := a.deleteEvent(ctx, target.ExternalEventID)
	a.providerOutcome(&resp, logger, "delete", perr)
	m.WithSimulated(perr != nil)
	a.recordMutation(ctx, m, nil)

	target.Status = booking.StatusCancelled
	a.remember(ctx, sessionID, target)
	logger.Info("booking cancelled", logging.BookingID(target.ID))

	resp.Response = cancelledMessage(target)
	resp.Booking = target
	if resp.Operation == "" {
		resp.Operation = OpSuccess
	}
	return resp, nil
}

func (a *Assistant) edit(ctx context.Context, t *turn) (Response, error) {
	head, tail, split := splitEdit(t.req.Message, t.now)

	reference := t.slots.Reference
	if split {
		reference = nlu.Extract(head, t.ctxEv, t.now).Reference
	} else if t.slots.ReferenceKind == nlu.RefTime {
		// Without a "to" clause the stated time is the new time, not the target.
		switch {
		case t.slots.HasSummary:
			reference = t.slots.Summary
		case t.ctxEv != nil:
			reference = nlu.ReferenceContext
		default:
			reference = ""
		}
	}

	target, err := a.resolveTarget(ctx, reference, t.ctxEv)
	if err != nil {
		return Response{}, err
	}
	if target == nil {
		return Response{Response: "No matching event found to edit.", Operation: OpNotFound}, nil
	}

	current := contextFromBooking(target)
	text := t.req.Message
	if split {
		text = tail
	}
	s := nlu.Extract(text, &current, t.now)
	if s.DurationOutOfRange {
		return clarify(durationClarifyText), nil
	}
	if s.Ambiguous {
		return clarify(fmt.Sprintf("When should I move '%s' to? Please give a specific date and time.", target.Summary)), nil
	}

	loc := s.Location()
	start := s.Datetime.In(loc)
	was := target.Start.In(loc)
	switch {
	case s.HasTime && !s.HasDate:
		start = time.Date(was.Year(), was.Month(), was.Day(), start.Hour(), start.Minute(), 0, 0, loc)
	case s.HasDate && !s.HasTime:
		start = time.Date(start.Year(), start.Month(), start.Day(), was.Hour(), was.Minute(), 0, 0, loc)
	}
	end := start.Add(s.Duration())
	if !end.After(start) {
		return clarify(durationClarifyText), nil
	}
	summary := target.Summary
	if s.HasSummary && (split || reference != s.Summary) {
		summary = s.Summary
	}

	all, err := a.store.List(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("listing bookings: %w", err)
	}
	if dup := activeAt(all, start, target.ID); dup != nil {
		return duplicateResponse(dup), nil
	}
	busy, err := a.engine.FindConflicts(ctx, start, end, target)
	if err != nil {
		return Response{}, err
	}
	if len(busy) > 0 {
		return a.busyResponse(ctx, busy, start, s.Duration(), s.Timezone, target)
	}

	changes := booking.Changes{Summary: summary, Start: start, End: end, Timezone: s.Timezone}
	m := instrumentation.NewMutation(instrumentation.MutationEdit, t.req.SessionID).
		WithBooking(target.ID, summary, start, s.Timezone, target.Attendees)
	if err := a.store.Update(ctx, target.ID, changes); err != nil {
		a.recordMutation(ctx, m, err)
		if errors.Is(err, booking.ErrDuplicateStart) {
			return Response{Response: duplicateText, Operation: OpConflict}, nil
		}
		return Response{}, fmt.Errorf("updating booking: %w", err)
	}

	var resp Response
	perr := a.updateEvent(ctx, target, booking.Draft{
		Summary:         summary,
		ExternalEventID: target.ExternalEventID,
		Start:           start,
		End:             end,
		Timezone:        s.Timezone,
		Attendees:       target.Attendees,
	})
	a.providerOutcome(&resp, t.logger, "update", perr)
	m.WithSimulated(perr != nil)
	a.recordMutation(ctx, m, nil)

	b, err := a.store.Get(ctx, target.ID)
	if err != nil {
		return Response{}, fmt.Errorf("reading updated booking: %w", err)
	}
	a.remember(ctx, t.req.SessionID, b)
	t.logger.Info("booking updated", logging.BookingID(b.ID))

	resp.Response = updatedMessage(b)
	resp.Booking = b
	if resp.Operation == "" {
		resp.Operation = OpSuccess
	}
	return resp, nil
}

func (a *Assistant) list(ctx context.Context, _ *turn) (Response, error) {
	all, err := a.store.List(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("listing bookings: %w", err)
	}
	if a.listActiveOnly {
		all = booking.ActiveOnly(all)
	}
	return Response{
		Response:  listMessage(all),
		Operation: OpSuccess,
		Bookings:  all,
	}, nil
}

func (a *Assistant) check(ctx context.Context, t *turn) (Response, error) {
	s := t.slots
	if s.Datetime == nil {
		return clarify(checkClarifyText), nil
	}
	start := *s.Datetime
	end := start.Add(s.Duration())
	if s.DurationOutOfRange || !end.After(start) {
		return clarify(durationClarifyText), nil
	}

	busy, err := a.engine.FindConflicts(ctx, start, end, nil)
	if err != nil {
		return Response{}, err
	}
	if len(busy) > 0 {
		return a.busyResponse(ctx, busy, start, s.Duration(), s.Timezone, nil)
	}
	return Response{
		Response:  freeMessage(start, end, s.Timezone),
		Operation: OpSuccess,
	}, nil
}

// busyResponse names the conflicting intervals and proposes free slots of the
// same duration in the window after start.
func (a *Assistant) busyResponse(ctx context.Context, busy []availability.Busy, start time.Time, d time.Duration, tz string, exclude *booking.Booking) (Response, error) {
	alts, err := a.alternatives(ctx, start, d, exclude)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Response:     busyMessage(busy, alts, tz, a.altWindow),
		Operation:    OpBusy,
		Conflicts:    busy,
		Alternatives: alts,
	}, nil
}

func (a *Assistant) alternatives(ctx context.Context, start time.Time, d time.Duration, exclude *booking.Booking) ([]availability.Interval, error) {
	windowEnd := start.Add(a.altWindow)
	busy, err := a.engine.FindConflicts(ctx, start, windowEnd, exclude)
	if err != nil {
		return nil, err
	}
	slots := availability.FreeSlots(busy, start, windowEnd, d, a.engine.Step())
	if len(slots) > a.maxAlts {
		slots = slots[:a.maxAlts]
	}
	return slots, nil
}

// resolveTarget finds the active booking a cancel or edit refers to. With no
// reference it falls back to the most recently created active booking.
// References resolve against active bookings only, which makes "last" skip
// cancelled bookings.
func (a *Assistant) resolveTarget(ctx context.Context, reference string, ev *nlu.ContextEvent) (*booking.Booking, error) {
	if reference == "" {
		b, err := a.store.MostRecent(ctx)
		if errors.Is(err, booking.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("finding most recent booking: %w", err)
		}
		return b, nil
	}
	all, err := a.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	return ResolveReference(booking.ActiveOnly(all), reference, ev), nil
}

func (a *Assistant) activeAtStart(ctx context.Context, start time.Time) *booking.Booking {
	all, err := a.store.List(ctx)
	if err != nil {
		return nil
	}
	return activeAt(all, start, "")
}

// activeAt returns the active booking starting exactly at start, ignoring skipID.
func activeAt(bookings []booking.Booking, start time.Time, skipID string) *booking.Booking {
	for i := range bookings {
		b := bookings[i]
		if b.Active() && b.ID != skipID && b.Start.Equal(start) {
			return &b
		}
	}
	return nil
}

var editToRe = regexp.MustCompile(`(?i)\s+to\s+`)

// splitEdit splits an edit request at the last " to " whose tail names a date
// or time, separating the target ("move the dentist") from the new value
// ("tomorrow at 4pm").
func splitEdit(message string, now time.Time) (head, tail string, ok bool) {
	matches := editToRe.FindAllStringIndex(message, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		rest := message[m[1]:]
		if _, err := nlu.ParseDateTime(rest, now, nlu.DefaultTimezone); err == nil {
			return strings.TrimSpace(message[:m[0]]), rest, true
		}
	}
	return message, "", false
}
