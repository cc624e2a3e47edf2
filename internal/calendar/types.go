package calendar

import (
	"fmt"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/Saijash84/CalMate/internal/booking"
)

// EventInput represents the input for creating or updating a calendar event
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string

	// Attendees are email addresses invited to the event
	Attendees []string
}

// EventSummary represents a simplified calendar event for listing
type EventSummary struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Status      string
	Transparent bool
	Organizer   string
	Attendees   []AttendeeInfo
}

// Busy reports whether the event blocks time on the calendar.
func (e EventSummary) Busy() bool {
	return e.Status != "cancelled" && !e.Transparent && !e.Start.IsZero() && e.End.After(e.Start)
}

// AttendeeInfo represents information about an event attendee
type AttendeeInfo struct {
	Email          string
	DisplayName    string
	ResponseStatus string // "needsAction", "declined", "tentative", "accepted"
}

// CalendarInfo represents information about a calendar
type CalendarInfo struct {
	ID         string
	Summary    string
	TimeZone   string
	Primary    bool
	AccessRole string // "owner", "writer", "reader", "freeBusyReader"
}

// FreeBusyInfo represents availability information for a calendar
type FreeBusyInfo struct {
	Calendar string
	Busy     []TimeRange
	Errors   []string
}

// TimeRange represents a time range
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// inputFromDraft maps a booking draft onto an event. Attendee entries that
// look like email addresses become invitations, the rest are listed in the
// description.
func inputFromDraft(d booking.Draft) EventInput {
	in := EventInput{
		Summary:  d.Summary,
		Start:    d.Start,
		End:      d.End,
		TimeZone: d.Timezone,
	}
	var names []string
	for _, a := range d.Attendees {
		if strings.Contains(a, "@") {
			in.Attendees = append(in.Attendees, a)
		} else {
			names = append(names, a)
		}
	}
	if len(names) > 0 {
		in.Description = "Attendees: " + strings.Join(names, ", ")
	}
	return in
}

func toEventDateTime(t time.Time, tz string) *calendar.EventDateTime {
	if tz == "" {
		tz = "UTC"
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		t = t.In(loc)
	}
	return &calendar.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: tz,
	}
}

func toEvent(in EventInput) *calendar.Event {
	event := &calendar.Event{
		Summary:     in.Summary,
		Description: in.Description,
		Start:       toEventDateTime(in.Start, in.TimeZone),
		End:         toEventDateTime(in.End, in.TimeZone),
	}
	for _, email := range in.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}
	return event
}

// parseEventDateTime reads either a timed or an all-day boundary.
func parseEventDateTime(dt *calendar.EventDateTime) (time.Time, bool, error) {
	if dt == nil {
		return time.Time{}, false, nil
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, false, err
	}
	if dt.Date != "" {
		loc := time.UTC
		if dt.TimeZone != "" {
			if l, err := time.LoadLocation(dt.TimeZone); err == nil {
				loc = l
			}
		}
		t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
		return t, true, err
	}
	return time.Time{}, false, fmt.Errorf("event time has neither date nor dateTime")
}

// toEventSummary converts a Google Calendar event to an EventSummary
func toEventSummary(event *calendar.Event) EventSummary {
	if event == nil {
		return EventSummary{}
	}
	summary := EventSummary{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Status:      event.Status,
		Transparent: event.Transparency == "transparent",
	}

	if t, allDay, err := parseEventDateTime(event.Start); err == nil {
		summary.Start = t
		summary.AllDay = allDay
	}
	if t, _, err := parseEventDateTime(event.End); err == nil {
		summary.End = t
	}

	if event.Organizer != nil {
		summary.Organizer = event.Organizer.Email
	}
	for _, att := range event.Attendees {
		summary.Attendees = append(summary.Attendees, AttendeeInfo{
			Email:          att.Email,
			DisplayName:    att.DisplayName,
			ResponseStatus: att.ResponseStatus,
		})
	}

	return summary
}

// toCalendarInfo converts a Google Calendar list entry to CalendarInfo
func toCalendarInfo(entry *calendar.CalendarListEntry) CalendarInfo {
	if entry == nil {
		return CalendarInfo{}
	}
	return CalendarInfo{
		ID:         entry.Id,
		Summary:    entry.Summary,
		TimeZone:   entry.TimeZone,
		Primary:    entry.Primary,
		AccessRole: entry.AccessRole,
	}
}
