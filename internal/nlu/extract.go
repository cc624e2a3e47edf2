package nlu

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Defaults applied when a message does not state a value.
const (
	DefaultDurationMinutes = 30
	DefaultTimezone        = "UTC"
	DefaultSummary         = "Event"
)

// Reference markers produced by the extractor.
const (
	ReferenceLast    = "last"
	ReferenceNext    = "next"
	ReferenceContext = "context"
)

// ReferenceKind tells how a reference token was found.
type ReferenceKind int

const (
	RefNone ReferenceKind = iota
	RefTime
	RefLast
	RefNext
	RefTitle
	RefContext
)

// Slots holds everything extracted from a single message.
type Slots struct {
	// Datetime is nil when the message has no parseable date or time.
	Datetime        *time.Time
	DurationMinutes int
	Summary         string
	Timezone        string
	Attendees       []string
	// Reference identifies an existing booking for cancel and edit. Empty means none.
	Reference     string
	ReferenceKind ReferenceKind
	Ambiguous     bool
	// DurationOutOfRange is set when the stated duration is outside 1 minute to
	// MaxDurationMinutes. The message is then ambiguous and DurationMinutes
	// holds the fallback.
	DurationOutOfRange bool

	// Explicit markers: true when the value came from the message itself rather
	// than from the conversation context or a default.
	HasDate      bool
	HasTime      bool
	HasDuration  bool
	HasSummary   bool
	HasTimezone  bool
	HasAttendees bool
}

// Duration returns the slot duration as a time.Duration.
func (s Slots) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Location returns the slot timezone, falling back to UTC when it cannot be loaded.
func (s Slots) Location() *time.Location {
	return LoadLocation(s.Timezone)
}

var (
	hoursRe      = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:hours?|hrs?)\b`)
	halfHourRe   = regexp.MustCompile(`(?i)\bhalf\s+an?\s+hour\b`)
	anHourRe     = regexp.MustCompile(`(?i)\b(?:an|one)\s+hour\b`)
	minutesRe    = regexp.MustCompile(`(?i)\b(\d+)\s*(?:minutes?|mins?)\b`)
	durationLead = regexp.MustCompile(`(?i)^(?:\d+(?:\.\d+)?\s*|an?\s+|one\s+|half\s+an?\s+)(?:minutes?|mins?|hours?|hrs?)\b`)

	quotedRe   = regexp.MustCompile(`(?:^|[\s(:])['"“‘]([^'"“”‘’]+)['"”’](?:[\s,.;:!?)]|$)`)
	titledRe   = regexp.MustCompile(`(?i)\b(?:titled|called|named)\s+([^,.;!?]+)`)
	forRe      = regexp.MustCompile(`(?i)\bfor\s+`)
	withRe     = regexp.MustCompile(`(?i)\bwith\s+([^.;!?]+)`)
	listSplit  = regexp.MustCompile(`(?i)\s*,\s*(?:and\s+)?|\s+and\s+`)
	subjectRe  = regexp.MustCompile(`(?i)\b(?:event|call|appointment|meeting)\s+(?:about|on|for|called|titled|named)\s+([^,.;!?]+)`)
	lastRe     = regexp.MustCompile(`(?i)\blast\b(?:\s+(\w+))?`)
	nextRe     = regexp.MustCompile(`(?i)\bnext\b(?:\s+(\w+))?`)
	anaphoraRe = regexp.MustCompile(`(?i)\b(?:it|this|that)\b`)
	meetingRe  = regexp.MustCompile(`(?i)\bmeeting\b`)
	vagueRe    = regexp.MustCompile(`(?i)\b(?:next week|someday|some day|sometime|some time|later|soon|whenever|not sure)\b`)
)

// clauseStops end a captured title or name list.
var clauseStops = map[string]bool{
	"on": true, "at": true, "for": true, "with": true, "from": true, "to": true,
	"tomorrow": true, "today": true, "tonight": true, "next": true, "this": true,
	"in": true, "by": true, "until": true, "starting": true, "between": true,
}

// attendeeStops additionally end a name list.
var attendeeStops = map[string]bool{
	"about": true, "regarding": true, "re": true, "titled": true, "called": true, "named": true,
}

var pronouns = map[string]bool{
	"me": true, "us": true, "you": true, "them": true, "him": true, "her": true, "myself": true,
}

// Extract pulls every slot out of message. ctx supplies fallbacks for slots the
// message leaves out and may be nil. now anchors relative dates such as
// "tomorrow". Extract is a pure function of its inputs.
func Extract(message string, ctx *ContextEvent, now time.Time) Slots {
	s := Slots{Attendees: []string{}}

	if tz, ok := extractTimezone(message); ok {
		s.Timezone, s.HasTimezone = tz, true
	} else if ctx != nil && ctx.Timezone != "" {
		s.Timezone = ctx.Timezone
	} else {
		s.Timezone = DefaultTimezone
	}
	loc := LoadLocation(s.Timezone)

	tm, found := findTemporal(message, now, loc)
	if found {
		t := tm.Time
		s.Datetime = &t
		s.HasDate, s.HasTime = tm.HasDate, tm.HasTime
	}

	minutes, found, derr := extractDuration(message)
	if found && derr == nil {
		s.DurationMinutes, s.HasDuration = minutes, true
	} else if ctx != nil && ctx.DurationMinutes > 0 {
		s.DurationMinutes = ctx.DurationMinutes
	} else {
		s.DurationMinutes = DefaultDurationMinutes
	}

	if summary, ok := extractSummary(message); ok {
		s.Summary, s.HasSummary = summary, true
	} else if ctx != nil && ctx.Summary != "" {
		s.Summary = ctx.Summary
	} else if meetingRe.MatchString(message) {
		s.Summary = "Meeting"
	} else {
		s.Summary = DefaultSummary
	}

	if names := extractAttendees(message); len(names) > 0 {
		s.Attendees, s.HasAttendees = names, true
	} else if ctx != nil && len(ctx.Attendees) > 0 {
		s.Attendees = append([]string(nil), ctx.Attendees...)
	}

	s.Reference, s.ReferenceKind = extractReference(message, tm, found)
	s.DurationOutOfRange = derr != nil
	s.Ambiguous = s.Datetime == nil || s.DurationOutOfRange || IsVague(message)
	return s
}

// IsVague reports whether message contains a temporal phrase too vague to act on.
func IsVague(message string) bool {
	return vagueRe.MatchString(message)
}

// extractSummary finds the event title. A quoted phrase wins, then "titled X",
// then the first "for X" that is not a duration or a pronoun.
func extractSummary(message string) (string, bool) {
	if m := quotedRe.FindStringSubmatch(message); m != nil {
		if title := strings.TrimSpace(m[1]); title != "" {
			return title, true
		}
	}
	if m := titledRe.FindStringSubmatch(message); m != nil {
		if title := trimClause(m[1], nil); title != "" {
			return title, true
		}
	}
	for _, loc := range forRe.FindAllStringIndex(message, -1) {
		raw := message[loc[1]:]
		if i := strings.IndexAny(raw, ",.;!?"); i >= 0 {
			raw = raw[:i]
		}
		raw = strings.TrimSpace(raw)
		if durationLead.MatchString(raw) {
			continue
		}
		title := trimClause(raw, nil)
		if title == "" || pronouns[strings.ToLower(title)] {
			continue
		}
		return title, true
	}
	return "", false
}

// extractAttendees splits the "with ..." clause into title-cased names.
func extractAttendees(message string) []string {
	m := withRe.FindStringSubmatch(message)
	if m == nil {
		return nil
	}
	clause := timezoneRe.ReplaceAllStringFunc(m[1], func(tok string) string {
		if _, err := time.LoadLocation(tok); err == nil {
			return ""
		}
		return tok
	})
	clause = trimClause(clause, attendeeStops)
	if clause == "" {
		return nil
	}
	var names []string
	for _, part := range listSplit.Split(clause, -1) {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part == "" || pronouns[strings.ToLower(part)] {
			continue
		}
		names = append(names, titleCase(part))
	}
	return names
}

// extractReference locates the token that identifies an existing booking, in
// priority order: a clock time (with or without a date), "last", "next", a bare
// date, a described title, an anaphor.
func extractReference(message string, tm temporal, found bool) (string, ReferenceKind) {
	if found && tm.HasTime {
		if tm.HasDate {
			return tm.Time.Format("2006-01-02T15:04"), RefTime
		}
		return tm.Time.Format("15:04"), RefTime
	}
	if markerOutsideDate(lastRe, message) {
		return ReferenceLast, RefLast
	}
	if markerOutsideDate(nextRe, message) {
		return ReferenceNext, RefNext
	}
	if found && tm.HasDate {
		return tm.Time.Format("2006-01-02"), RefTime
	}
	if m := quotedRe.FindStringSubmatch(message); m != nil {
		if title := strings.TrimSpace(m[1]); title != "" {
			return title, RefTitle
		}
	}
	if m := subjectRe.FindStringSubmatch(message); m != nil {
		if title := trimClause(m[1], nil); title != "" {
			return title, RefTitle
		}
	}
	if anaphoraRe.MatchString(message) {
		return ReferenceContext, RefContext
	}
	return "", RefNone
}

// markerOutsideDate reports whether re matches somewhere its marker word is not
// part of a date phrase such as "next week" or "last Friday".
func markerOutsideDate(re *regexp.Regexp, message string) bool {
	for _, m := range re.FindAllStringSubmatch(message, -1) {
		if !isDateWord(m[1]) {
			return true
		}
	}
	return false
}

func isDateWord(word string) bool {
	w := strings.ToLower(word)
	if w == "" {
		return false
	}
	if _, ok := weekdayByName[w]; ok {
		return true
	}
	if _, ok := monthByName[w]; ok {
		return true
	}
	switch w {
	case "week", "weekend", "month", "year", "day", "morning", "afternoon", "evening", "night":
		return true
	}
	return false
}

// trimClause keeps words up to the first clause stop, date word or number.
func trimClause(text string, extraStops map[string]bool) string {
	var kept []string
	for _, word := range strings.Fields(text) {
		bare := strings.ToLower(strings.Trim(word, `,'"()`))
		if clauseStops[bare] || extraStops[bare] || isDateWord(bare) {
			break
		}
		if r, _ := utf8.DecodeRuneInString(bare); unicode.IsDigit(r) {
			break
		}
		kept = append(kept, word)
	}
	return strings.Trim(strings.Join(kept, " "), ` ,'"`)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
