package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/Saijash84/CalMate/internal/availability"
	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/nlu"
)

const (
	whenLayout  = "2006-01-02 15:04"
	clockLayout = "15:04"
)

const (
	helpText = "I can help you manage your calendar. Try:\n" +
		"- \"Book a meeting with Bob tomorrow at 3pm for 1 hour\"\n" +
		"- \"Cancel my 3pm meeting\" or \"Cancel the last event\"\n" +
		"- \"Move it to Friday at 10am\"\n" +
		"- \"Am I free on Monday at 2pm?\"\n" +
		"- \"Show my events\""
	unknownText      = "I'm not sure what you want to do. Try asking for help."
	errorText        = "Sorry, something went wrong while handling your request. Please try again."
	duplicateText    = "You already have an event at that time."
	bookClarifyText  = "I need a specific date and time to book this. When should it be?"
	checkClarifyText = "Which date and time should I check?"

	durationClarifyText = "How long should it be? Durations must be between 1 minute and 14 days."
)

func zoneName(tz string) string {
	if tz == "" {
		return nlu.DefaultTimezone
	}
	return tz
}

// formatWhen renders t in tz as "2006-01-02 15:04 (Zone)". Replies in this
// shape are what nlu.ResolveContext reads back from history.
func formatWhen(t time.Time, tz string) string {
	return fmt.Sprintf("%s (%s)", t.In(nlu.LoadLocation(tz)).Format(whenLayout), zoneName(tz))
}

func bookedMessage(b *booking.Booking) string {
	msg := fmt.Sprintf("Event '%s' booked for %s.", b.Summary, formatWhen(b.Start, b.Timezone))
	if len(b.Attendees) > 0 {
		msg += fmt.Sprintf(" Attendees: %s.", strings.Join(b.Attendees, ", "))
	}
	return msg
}

func updatedMessage(b *booking.Booking) string {
	return fmt.Sprintf("Event '%s' updated for %s.", b.Summary, formatWhen(b.Start, b.Timezone))
}

func cancelledMessage(b *booking.Booking) string {
	return fmt.Sprintf("Event '%s' cancelled. It was scheduled for %s.", b.Summary, formatWhen(b.Start, b.Timezone))
}

func duplicateResponse(b *booking.Booking) Response {
	return Response{
		Response:  fmt.Sprintf("%s '%s' is already at %s.", duplicateText, b.Summary, formatWhen(b.Start, b.Timezone)),
		Operation: OpConflict,
		Booking:   b,
	}
}

func listMessage(bookings []booking.Booking) string {
	if len(bookings) == 0 {
		return "You have no events."
	}
	var sb strings.Builder
	sb.WriteString("Your events:")
	for _, b := range bookings {
		fmt.Fprintf(&sb, "\n- %s at %s", b.Summary, formatWhen(b.Start, b.Timezone))
		if !b.Active() {
			sb.WriteString(" [cancelled]")
		}
	}
	return sb.String()
}

func freeMessage(start, end time.Time, tz string) string {
	loc := nlu.LoadLocation(tz)
	return fmt.Sprintf("You are free on %s from %s to %s (%s).",
		start.In(loc).Format("2006-01-02"),
		start.In(loc).Format(clockLayout),
		end.In(loc).Format(clockLayout),
		zoneName(tz))
}

func busyMessage(busy []availability.Busy, alts []availability.Interval, tz string, window time.Duration) string {
	loc := nlu.LoadLocation(tz)
	names := make([]string, 0, len(busy))
	for _, b := range busy {
		name := "a calendar event"
		if b.Summary != "" {
			name = "'" + b.Summary + "'"
		}
		names = append(names, fmt.Sprintf("%s (%s-%s)", name,
			b.Start.In(loc).Format(whenLayout), b.End.In(loc).Format(clockLayout)))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are busy at that time (%s): %s.", zoneName(tz), strings.Join(names, ", "))
	if len(alts) == 0 {
		fmt.Fprintf(&sb, " No free slots found in the following %s.", humanDuration(window))
		return sb.String()
	}
	slots := make([]string, 0, len(alts))
	for _, iv := range alts {
		slots = append(slots, iv.Start.In(loc).Format(whenLayout)+"-"+iv.End.In(loc).Format(clockLayout))
	}
	fmt.Fprintf(&sb, " Free alternatives: %s.", strings.Join(slots, ", "))
	return sb.String()
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}
