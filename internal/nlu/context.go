package nlu

import (
	"regexp"
	"strings"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prior chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContextEvent is the event most recently confirmed in the conversation. It
// only backfills slots a message leaves out.
type ContextEvent struct {
	BookingID       string    `json:"booking_id,omitempty"`
	Summary         string    `json:"summary"`
	Datetime        time.Time `json:"datetime"`
	DurationMinutes int       `json:"duration_minutes"`
	Timezone        string    `json:"timezone"`
	Attendees       []string  `json:"attendees,omitempty"`
}

var (
	confirmationRe = regexp.MustCompile(`(?i)'(.+)' (?:booked|scheduled|updated|cancelled).*?for ([\w, :\-]+)`)
	zoneSuffixRe   = regexp.MustCompile(`\(([A-Za-z]+(?:/[A-Za-z_+\-0-9]+){0,2})\)`)
)

// ResolveContext scans history from the newest turn backwards and rebuilds the
// event named by the first assistant confirmation it finds. Duration and
// attendees are not recoverable from text and take their defaults. A zone
// printed in parentheses after the time is honoured. now anchors relative
// phrases. It returns nil when no confirmation is found.
func ResolveContext(history []Message, now time.Time) *ContextEvent {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role != RoleAssistant || !strings.Contains(strings.ToLower(msg.Content), "event") {
			continue
		}
		m := confirmationRe.FindStringSubmatchIndex(msg.Content)
		if m == nil {
			continue
		}
		summary := msg.Content[m[2]:m[3]]
		phrase := msg.Content[m[4]:m[5]]

		tz := DefaultTimezone
		if z := zoneSuffixRe.FindStringSubmatch(msg.Content[m[5]:]); z != nil {
			if _, err := time.LoadLocation(z[1]); err == nil {
				tz = z[1]
			}
		}

		tm, ok := findTemporal(phrase, now, LoadLocation(tz))
		if !ok {
			continue
		}
		return &ContextEvent{
			Summary:         summary,
			Datetime:        tm.Time,
			DurationMinutes: DefaultDurationMinutes,
			Timezone:        tz,
			Attendees:       []string{},
		}
	}
	return nil
}
