package nlu

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const monthNames = `(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)`

const weekdayNames = `(monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tues|tue|wed|thurs|thur|thu|fri|sat|sun)`

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ](\d{1,2}):(\d{2})(?::\d{2}(?:\.\d+)?)?(Z|[+-]\d{2}:\d{2})?)?\b`)
	dmyDateRe   = regexp.MustCompile(`\b(\d{1,2})[/.](\d{1,2})[/.](\d{4}|\d{2})\b`)
	dayMonthRe  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthNames + `\.?(?:,?\s+(\d{4}))?\b`)
	monthDayRe  = regexp.MustCompile(`(?i)\b` + monthNames + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	relativeRe  = regexp.MustCompile(`(?i)\b(day after tomorrow|tomorrow|today|tonight)\b`)
	weekdayRe   = regexp.MustCompile(`(?i)\b(?:(next|this|coming|on)\s+)?` + weekdayNames + `\b`)
	clock12Re   = regexp.MustCompile(`(?i)\b(\d{1,2})(?::([0-5]\d))?\s*([ap])\.?m\b\.?`)
	clock24Re   = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	clockWordRe = regexp.MustCompile(`(?i)\b(noon|midday|midnight)\b`)
)

var monthByName = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var weekdayByName = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

type dateKind int

const (
	kindExplicit dateKind = iota
	kindRelative
	kindWeekday
)

// dateMention is one date-bearing phrase found in a message.
type dateMention struct {
	start, end int
	kind       dateKind
	year       int
	month      time.Month
	day        int
	hasClock   bool
	hour, min  int
	// zone is the UTC offset written after an ISO time, nil when none was.
	zone *time.Location
	// defaultHour applies when neither the mention nor the message names a time.
	defaultHour int
}

// clockMention is one standalone time-of-day phrase found in a message.
type clockMention struct {
	start, end int
	hour, min  int
}

// ErrUnparseable is returned when text carries no date or time phrase.
var ErrUnparseable = errors.New("no parseable date or time")

// ParseDateTime reads the first date/time phrase in text the way Extract
// does, interpreting wall-clock values in tz (UTC when tz cannot be loaded).
func ParseDateTime(text string, now time.Time, tz string) (time.Time, error) {
	tm, ok := findTemporal(text, now, LoadLocation(tz))
	if !ok {
		return time.Time{}, ErrUnparseable
	}
	return tm.Time, nil
}

// ParseInstant reads an RFC 3339 timestamp or, failing that, a date/time
// phrase the way ParseDateTime does.
func ParseInstant(raw string, now time.Time, tz string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrUnparseable
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return ParseDateTime(raw, now, tz)
}

// temporal is the resolved date/time reading of a message.
type temporal struct {
	Time    time.Time
	HasDate bool
	HasTime bool
}

// findTemporal resolves the first date mention in message order against now,
// overlaying the first standalone clock time when the date carries none. A clock
// time without any date refers to the current day. Wall-clock values are
// interpreted in loc unless an ISO time carries its own offset; the result is
// always expressed in loc.
func findTemporal(message string, now time.Time, loc *time.Location) (temporal, bool) {
	now = now.In(loc)
	dates := findDates(message, now)
	clock, hasClock := firstClock(message)

	if len(dates) == 0 {
		if !hasClock {
			return temporal{}, false
		}
		y, m, d := now.Date()
		return temporal{
			Time:    time.Date(y, m, d, clock.hour, clock.min, 0, 0, loc),
			HasTime: true,
		}, true
	}

	date := pickDate(dates)
	tm := temporal{HasDate: true}
	switch {
	case date.hasClock:
		zone := loc
		if date.zone != nil {
			zone = date.zone
		}
		tm.Time = time.Date(date.year, date.month, date.day, date.hour, date.min, 0, 0, zone).In(loc)
		tm.HasTime = true
	case hasClock:
		tm.Time = time.Date(date.year, date.month, date.day, clock.hour, clock.min, 0, 0, loc)
		tm.HasTime = true
	default:
		tm.Time = time.Date(date.year, date.month, date.day, date.defaultHour, 0, 0, 0, loc)
		tm.HasTime = date.defaultHour != 0
	}
	return tm, true
}

// pickDate returns the first mention in message order. A weekday directly
// followed by an explicit date ("Monday, June 10") defers to the explicit date.
func pickDate(dates []dateMention) dateMention {
	first := dates[0]
	if first.kind == kindWeekday && len(dates) > 1 {
		next := dates[1]
		if next.kind == kindExplicit && next.start-first.end <= 2 {
			return next
		}
	}
	return first
}

// findDates returns every valid date mention ordered by position.
func findDates(message string, now time.Time) []dateMention {
	var out []dateMention

	for _, m := range isoDateRe.FindAllStringSubmatchIndex(message, -1) {
		year := atoi(message[m[2]:m[3]])
		month := time.Month(atoi(message[m[4]:m[5]]))
		day := atoi(message[m[6]:m[7]])
		dm := dateMention{start: m[0], end: m[1], kind: kindExplicit, year: year, month: month, day: day}
		if m[8] >= 0 {
			hour := atoi(message[m[8]:m[9]])
			minute := atoi(message[m[10]:m[11]])
			if hour > 23 {
				continue
			}
			dm.hasClock, dm.hour, dm.min = true, hour, minute
			if m[12] >= 0 {
				zone, ok := fixedZone(message[m[12]:m[13]])
				if !ok {
					continue
				}
				dm.zone = zone
			}
		}
		if validDate(year, month, day) {
			out = append(out, dm)
		}
	}

	for _, m := range dmyDateRe.FindAllStringSubmatchIndex(message, -1) {
		if overlapsAny(out, m[0], m[1]) {
			continue
		}
		day := atoi(message[m[2]:m[3]])
		month := time.Month(atoi(message[m[4]:m[5]]))
		year := atoi(message[m[6]:m[7]])
		if year < 100 {
			year += 2000
		}
		if validDate(year, month, day) {
			out = append(out, dateMention{start: m[0], end: m[1], kind: kindExplicit, year: year, month: month, day: day})
		}
	}

	for _, m := range dayMonthRe.FindAllStringSubmatchIndex(message, -1) {
		if overlapsAny(out, m[0], m[1]) {
			continue
		}
		day := atoi(message[m[2]:m[3]])
		month := monthByName[strings.ToLower(message[m[4]:m[5]])]
		if dm, ok := namedDate(now, month, day, group(message, m, 3)); ok {
			dm.start, dm.end = m[0], m[1]
			out = append(out, dm)
		}
	}

	for _, m := range monthDayRe.FindAllStringSubmatchIndex(message, -1) {
		if overlapsAny(out, m[0], m[1]) {
			continue
		}
		month := monthByName[strings.ToLower(message[m[2]:m[3]])]
		day := atoi(message[m[4]:m[5]])
		if dm, ok := namedDate(now, month, day, group(message, m, 3)); ok {
			dm.start, dm.end = m[0], m[1]
			out = append(out, dm)
		}
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, m := range relativeRe.FindAllStringSubmatchIndex(message, -1) {
		word := strings.ToLower(message[m[2]:m[3]])
		d := today
		switch word {
		case "tomorrow":
			d = today.AddDate(0, 0, 1)
		case "day after tomorrow":
			d = today.AddDate(0, 0, 2)
		}
		dm := dateMention{start: m[0], end: m[1], kind: kindRelative, year: d.Year(), month: d.Month(), day: d.Day()}
		if word == "tonight" {
			dm.defaultHour = 20
		}
		out = append(out, dm)
	}

	for _, m := range weekdayRe.FindAllStringSubmatchIndex(message, -1) {
		if overlapsAny(out, m[0], m[1]) {
			continue
		}
		qualifier := strings.ToLower(group(message, m, 1))
		wd := weekdayByName[strings.ToLower(message[m[4]:m[5]])]
		diff := (int(wd) - int(today.Weekday()) + 7) % 7
		if diff == 0 && qualifier == "next" {
			diff = 7
		}
		d := today.AddDate(0, 0, diff)
		out = append(out, dateMention{start: m[0], end: m[1], kind: kindWeekday, year: d.Year(), month: d.Month(), day: d.Day()})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// fixedZone reads "Z" or a "+hh:mm" / "-hh:mm" offset.
func fixedZone(offset string) (*time.Location, bool) {
	if offset == "Z" {
		return time.UTC, true
	}
	hours, minutes := atoi(offset[1:3]), atoi(offset[4:6])
	if hours > 14 || minutes > 59 {
		return nil, false
	}
	secs := hours*3600 + minutes*60
	if offset[0] == '-' {
		secs = -secs
	}
	return time.FixedZone("", secs), true
}

// namedDate builds a mention for a month-name date. Without a year the next
// occurrence on or after today is used.
func namedDate(now time.Time, month time.Month, day int, yearText string) (dateMention, bool) {
	year := now.Year()
	if yearText != "" {
		year = atoi(yearText)
	}
	if !validDate(year, month, day) {
		return dateMention{}, false
	}
	if yearText == "" {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if time.Date(year, month, day, 0, 0, 0, 0, now.Location()).Before(today) {
			year++
			if !validDate(year, month, day) {
				return dateMention{}, false
			}
		}
	}
	return dateMention{kind: kindExplicit, year: year, month: month, day: day}, true
}

// firstClock returns the earliest standalone time-of-day mention.
func firstClock(message string) (clockMention, bool) {
	var clocks []clockMention
	isoSpans := isoDateRe.FindAllStringIndex(message, -1)

	for _, m := range clock12Re.FindAllStringSubmatchIndex(message, -1) {
		hour := atoi(message[m[2]:m[3]])
		minute := 0
		if m[4] >= 0 {
			minute = atoi(message[m[4]:m[5]])
		}
		if hour < 1 || hour > 12 {
			continue
		}
		hour = to24Hour(hour, strings.ToLower(message[m[6]:m[7]]) == "p")
		clocks = append(clocks, clockMention{start: m[0], end: m[1], hour: hour, min: minute})
	}

	for _, m := range clock24Re.FindAllStringSubmatchIndex(message, -1) {
		if insideSpan(isoSpans, m[0], m[1]) {
			continue
		}
		clocks = append(clocks, clockMention{start: m[0], end: m[1], hour: atoi(message[m[2]:m[3]]), min: atoi(message[m[4]:m[5]])})
	}

	for _, m := range clockWordRe.FindAllStringSubmatchIndex(message, -1) {
		hour := 12
		if strings.EqualFold(message[m[2]:m[3]], "midnight") {
			hour = 0
		}
		clocks = append(clocks, clockMention{start: m[0], end: m[1], hour: hour})
	}

	if len(clocks) == 0 {
		return clockMention{}, false
	}
	sort.SliceStable(clocks, func(i, j int) bool { return clocks[i].start < clocks[j].start })
	return clocks[0], true
}

// to24Hour applies the 12-hour conversion: pm adds twelve except at 12, and 12am is 0.
func to24Hour(hour int, pm bool) int {
	switch {
	case pm && hour != 12:
		return hour + 12
	case !pm && hour == 12:
		return 0
	default:
		return hour
	}
}

// insideSpan reports whether [start, end) falls within one of spans. Clock times
// that are part of an ISO date-time are read with their date, not on their own.
func insideSpan(spans [][]int, start, end int) bool {
	for _, sp := range spans {
		if start >= sp[0] && end <= sp[1] {
			return true
		}
	}
	return false
}

func validDate(year int, month time.Month, day int) bool {
	if month < time.January || month > time.December || day < 1 || year < 1 {
		return false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return t.Month() == month && t.Day() == day
}

func overlapsAny(dates []dateMention, start, end int) bool {
	for _, d := range dates {
		if start < d.end && d.start < end {
			return true
		}
	}
	return false
}

func group(s string, m []int, n int) string {
	if 2*n+1 >= len(m) || m[2*n] < 0 {
		return ""
	}
	return s[m[2*n]:m[2*n+1]]
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
