package nlu

import (
	"errors"
	"math"
	"strconv"
	"time"
)

// MaxDurationMinutes is the longest duration a single event may have: 14 days,
// the same bound as a free-slot search window.
const MaxDurationMinutes = 14 * 24 * 60

// ErrInvalidDuration is returned for durations shorter than a minute or longer
// than MaxDurationMinutes.
var ErrInvalidDuration = errors.New("duration must be between 1 minute and 14 days")

// MinutesDuration converts a whole number of minutes to a time.Duration.
func MinutesDuration(minutes float64) (time.Duration, error) {
	if minutes < 1 || minutes > MaxDurationMinutes || minutes != math.Trunc(minutes) {
		return 0, ErrInvalidDuration
	}
	return time.Duration(minutes) * time.Minute, nil
}

// ParseMinutes reads a decimal minute count such as "45".
func ParseMinutes(raw string) (time.Duration, error) {
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, ErrInvalidDuration
	}
	return MinutesDuration(n)
}

// extractDuration returns the first explicit duration in minutes: hour phrases
// take precedence over minute phrases. found is false when the message states
// no duration. A stated duration outside 1 minute to MaxDurationMinutes yields
// ErrInvalidDuration.
func extractDuration(message string) (minutes int, found bool, err error) {
	if m := hoursRe.FindStringSubmatch(message); m != nil {
		h, perr := strconv.ParseFloat(m[1], 64)
		if perr != nil || h*60 > MaxDurationMinutes {
			return 0, true, ErrInvalidDuration
		}
		if minutes := int(h*60 + 0.5); minutes >= 1 {
			return minutes, true, nil
		}
	}
	if halfHourRe.MatchString(message) {
		return 30, true, nil
	}
	if anHourRe.MatchString(message) {
		return 60, true, nil
	}
	if m := minutesRe.FindStringSubmatch(message); m != nil {
		n, perr := strconv.Atoi(m[1])
		if perr != nil || n > MaxDurationMinutes {
			return 0, true, ErrInvalidDuration
		}
		if n >= 1 {
			return n, true, nil
		}
	}
	return 0, false, nil
}
