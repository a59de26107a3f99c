package kst

import (
	"testing"
	"time"
)

func TestDayKeyRollsOverAtKSTMidnight(t *testing.T) {
	// 2025-03-01 14:59 UTC is 23:59 KST; one minute later it is the next day.
	before := time.Date(2025, 3, 1, 14, 59, 0, 0, time.UTC)
	after := before.Add(2 * time.Minute)

	if got := DayKey(before); got != "2025-03-01" {
		t.Errorf("DayKey(before) = %q, want 2025-03-01", got)
	}
	if got := DayKey(after); got != "2025-03-02" {
		t.Errorf("DayKey(after) = %q, want 2025-03-02", got)
	}
	if SameDay(before, after) {
		t.Error("instants across KST midnight must not share a day")
	}
}

func TestNextAtBeforeAndAfterTarget(t *testing.T) {
	loc := Location()
	morning := time.Date(2025, 3, 1, 6, 0, 0, 0, loc)
	next := NextAt(morning, 8, 0)
	if next.Day() != 1 || next.Hour() != 8 {
		t.Errorf("NextAt before target = %v, want same-day 08:00", next)
	}

	evening := time.Date(2025, 3, 1, 8, 0, 0, 0, loc)
	next = NextAt(evening, 8, 0)
	if next.Day() != 2 {
		t.Errorf("NextAt at target = %v, want next-day 08:00", next)
	}
}
