package nlu

import (
	"regexp"
	"time"
	_ "time/tzdata"
)

var timezoneRe = regexp.MustCompile(`\b([A-Z][A-Za-z]+(?:/[A-Za-z_+\-0-9]+){1,2})\b`)

// extractTimezone returns the first Area/City token in message that names a
// loadable IANA zone.
func extractTimezone(message string) (string, bool) {
	for _, m := range timezoneRe.FindAllStringSubmatch(message, -1) {
		if _, err := time.LoadLocation(m[1]); err == nil {
			return m[1], true
		}
	}
	return "", false
}

// LoadLocation resolves an IANA zone name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" || name == DefaultTimezone {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
