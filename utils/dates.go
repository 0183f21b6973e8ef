// utils/dates.go
package utils

import (
	"strings"
	"time"
)

// LoadLocation resolves an IANA timezone name, falling back to UTC when it
// is empty or unknown. Scheduling math never uses this; it is display only.
func LoadLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatInZone renders an instant as "02/01/2006 - 03:04pm" in the given
// timezone, the format the Notion column expects.
func FormatInZone(t time.Time, tz string) string {
	return strings.ToLower(t.In(LoadLocation(tz)).Format("02/01/2006 - 03:04PM"))
}

// HourMinuteInZone renders just the wall-clock time, e.g. "15:04", for the
// reminder message bodies.
func HourMinuteInZone(t time.Time, tz string) string {
	return t.In(LoadLocation(tz)).Format("15:04")
}
