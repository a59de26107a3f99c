// Package kst centralizes Korea Standard Time handling. Quota windows,
// push scheduling and "today" in prompts all roll over on the KST
// calendar day regardless of server timezone.
package kst

import "time"

var location *time.Location

func init() {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		// Containers without tzdata still need correct offsets; KST has
		// no daylight saving so a fixed zone is equivalent.
		loc = time.FixedZone("KST", 9*60*60)
	}
	location = loc
}

// Location returns the Asia/Seoul location.
func Location() *time.Location { return location }

// Now returns the current time in KST.
func Now() time.Time { return time.Now().In(location) }

// In converts an instant to KST.
func In(t time.Time) time.Time { return t.In(location) }

// DayKey formats the KST calendar day of an instant, used as the daily
// quota bucket key.
func DayKey(t time.Time) string {
	return t.In(location).Format("2006-01-02")
}

// SameDay reports whether two instants fall on the same KST calendar day.
func SameDay(a, b time.Time) bool {
	return DayKey(a) == DayKey(b)
}

// NextAt returns the next instant at hh:mm KST strictly after now.
func NextAt(now time.Time, hour, minute int) time.Time {
	n := now.In(location)
	next := time.Date(n.Year(), n.Month(), n.Day(), hour, minute, 0, 0, location)
	if !next.After(n) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
