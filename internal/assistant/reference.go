package assistant

import (
	"regexp"
	"strings"

	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/nlu"
)

var (
	refClockRe    = regexp.MustCompile(`^\d{2}:\d{2}$`)
	refDateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}$`)
	refDateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ResolveReference maps a reference token from the extractor onto one of
// bookings, which must be in store order. The assistant passes only active
// bookings, so once the newest booking is cancelled "last" means the newest
// booking still active rather than the most recently created one; cancelled
// bookings can never be cancelled or edited again.
//
//   - "last" is the final booking and "next" the first
//   - "context" is the booking matching the conversation context ev
//   - a clock, date or date-time token matches the booking's local start
//   - anything else matches a start string or, case-insensitively, a summary
//
// It returns nil when nothing matches.
func ResolveReference(bookings []booking.Booking, reference string, ev *nlu.ContextEvent) *booking.Booking {
	if len(bookings) == 0 || reference == "" {
		return nil
	}
	pick := func(i int) *booking.Booking {
		b := bookings[i]
		return &b
	}

	switch reference {
	case nlu.ReferenceLast:
		return pick(len(bookings) - 1)
	case nlu.ReferenceNext:
		return pick(0)
	case nlu.ReferenceContext:
		return matchContext(bookings, ev)
	}

	if layout := referenceLayout(reference); layout != "" {
		for i, b := range bookings {
			if b.Start.In(b.Location()).Format(layout) == reference {
				return pick(i)
			}
		}
		return nil
	}

	needle := strings.ToLower(reference)
	for i, b := range bookings {
		if strings.Contains(b.StartString(), reference) || strings.Contains(strings.ToLower(b.Summary), needle) {
			return pick(i)
		}
	}
	return nil
}

func referenceLayout(reference string) string {
	switch {
	case refClockRe.MatchString(reference):
		return "15:04"
	case refDateTimeRe.MatchString(reference):
		return "2006-01-02T15:04"
	case refDateRe.MatchString(reference):
		return "2006-01-02"
	}
	return ""
}

// matchContext prefers the booking id recorded in session state, then the
// context summary, then the context start instant.
func matchContext(bookings []booking.Booking, ev *nlu.ContextEvent) *booking.Booking {
	if ev == nil {
		return nil
	}
	if ev.BookingID != "" {
		for i := range bookings {
			if bookings[i].ID == ev.BookingID {
				b := bookings[i]
				return &b
			}
		}
	}
	if ev.Summary != "" {
		needle := strings.ToLower(ev.Summary)
		for i := range bookings {
			if strings.Contains(strings.ToLower(bookings[i].Summary), needle) {
				b := bookings[i]
				return &b
			}
		}
	}
	for i := range bookings {
		if bookings[i].Start.Equal(ev.Datetime) {
			b := bookings[i]
			return &b
		}
	}
	return nil
}
