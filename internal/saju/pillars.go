package saju

import (
	"time"

	"github.com/haneul-labs/saju-engine/internal/apperr"
)

// Day pillar anchor: 2000-01-01 was a 무오 day (stem 4, branch 6).
// Every other day pillar is a signed day-count offset from this date.
const (
	anchorDayStem   = 4
	anchorDayBranch = 6
)

var anchorDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Month stem offsets keyed by year stem modulo 5 (오행둔월). A 갑/기 year
// starts its first lunar-style month (인월) at 병, 을/경 at 무, and so on.
var monthStemOffsets = [5]int{2, 4, 6, 8, 0}

// YearPillar computes the pillar of a calendar year. 1984 (갑자) anchors
// the cycle, which reduces to stem (y-4) mod 10 and branch (y-4) mod 12.
func YearPillar(year int) Pillar {
	return Pillar{Stem: mod(year-4, 10), Branch: mod(year-4, 12)}
}

// monthPillar derives the month pillar from the year stem and the calendar
// month. Month boundaries follow the calendar month here; solar-term
// boundaries are only available through the external manse lookup.
func monthPillar(yearStem, month int) Pillar {
	idx := mod(month-2, 12)
	return Pillar{
		Stem:   mod(monthStemOffsets[yearStem%5]+idx, 10),
		Branch: mod(idx+2, 12),
	}
}

// DayPillarOf computes the sexagenary pillar of any calendar day by
// day-count offset from the anchor.
func DayPillarOf(year, month, day int) Pillar {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	days := int(t.Sub(anchorDate).Hours() / 24)
	return Pillar{
		Stem:   mod(anchorDayStem+days, 10),
		Branch: mod(anchorDayBranch+days, 12),
	}
}

// hourPillar derives the hour pillar from the day stem and the clock hour.
// The twelve two-hour watches start at 23:00 (자시), so hour 23 and hour 0
// share watch index 0. Late-night hours do not roll the day pillar over.
func hourPillar(dayStem, hour int) Pillar {
	shi := ((hour + 1) % 24) / 2
	return Pillar{
		Stem:   mod((dayStem%5)*2+shi, 10),
		Branch: shi,
	}
}

// Compute derives the full natal chart for a birth tuple. The date must be
// a real calendar date; impossible dates like February 30 are rejected.
func Compute(year, month, day, hour int) (Pillars, error) {
	if year < 1900 || year > 2099 {
		return Pillars{}, apperr.Newf(apperr.KindValidation, "birth year %d outside supported range 1900-2099", year)
	}
	if month < 1 || month > 12 || day < 1 || hour < 0 || hour > 23 {
		return Pillars{}, apperr.Newf(apperr.KindValidation, "invalid birth tuple %04d-%02d-%02d %02d시", year, month, day, hour)
	}
	// time.Date normalizes overflow (Feb 30 becomes Mar 2); reject any
	// tuple that does not round-trip.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return Pillars{}, apperr.Newf(apperr.KindValidation, "%04d-%02d-%02d is not a real calendar date", year, month, day)
	}

	yp := YearPillar(year)
	dp := DayPillarOf(year, month, day)
	return Pillars{
		Year:  yp,
		Month: monthPillar(yp.Stem, month),
		Day:   dp,
		Hour:  hourPillar(dp.Stem, hour),
	}, nil
}
