package fortune

import (
	"strings"
	"testing"
	"time"

	"github.com/haneul-labs/saju-engine/internal/saju"
)

func mustCompute(t *testing.T, y, m, d, h int) saju.Pillars {
	t.Helper()
	p, err := saju.Compute(y, m, d, h)
	if err != nil {
		t.Fatalf("Compute(%d,%d,%d,%d): %v", y, m, d, h, err)
	}
	return p
}

func TestCompatibilityDeterministicAndBounded(t *testing.T) {
	a := mustCompute(t, 1994, 10, 3, 19)
	b := mustCompute(t, 1995, 3, 15, 14)
	date := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	first := Compatibility(a, b, date)
	second := Compatibility(a, b, date)
	if first != second {
		t.Errorf("same inputs produced different results: %+v vs %+v", first, second)
	}

	if first.Overall < 40 || first.Overall > 95 {
		t.Errorf("overall %d outside [40,95]", first.Overall)
	}
	if first.BranchScore < 20 || first.BranchScore > 100 {
		t.Errorf("branch score %d outside [20,100]", first.BranchScore)
	}
	for _, axis := range []int{first.Emotion, first.Communication, first.Wealth, first.Attraction, first.LongTerm} {
		if axis < first.Overall-10 || axis > first.Overall+10 {
			t.Errorf("sub-axis %d strays more than 10 from overall %d", axis, first.Overall)
		}
	}
}

func TestCompatibilityBranchScoreArithmetic(t *testing.T) {
	a := mustCompute(t, 1990, 6, 15, 10)
	b := mustCompute(t, 1992, 6, 15, 10)
	got := Compatibility(a, b, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	want := 70 + 8*got.Combines - 12*got.Clashes
	if want < 20 {
		want = 20
	}
	if want > 100 {
		want = 100
	}
	if got.BranchScore != want {
		t.Errorf("branch score = %d, want 70+8*%d-12*%d = %d", got.BranchScore, got.Combines, got.Clashes, want)
	}
}

func TestWealthWeightsAndBounds(t *testing.T) {
	p := mustCompute(t, 1988, 8, 8, 8)
	r := Wealth(p, 2026)

	want := (25*r.Stability + 25*r.Opportunity + 20*r.Productivity + 15*r.Risk + 15*r.Timing) / 100
	if r.Overall != want {
		t.Errorf("overall = %d, want weighted sum %d", r.Overall, want)
	}
	for name, v := range map[string]int{
		"stability": r.Stability, "opportunity": r.Opportunity,
		"productivity": r.Productivity, "risk": r.Risk, "timing": r.Timing,
	} {
		if v < 20 || v > 95 {
			t.Errorf("%s = %d outside [20,95]", name, v)
		}
	}
}

func TestDailyStableWithinDayAndPerUser(t *testing.T) {
	day := time.Date(2026, 8, 26, 9, 30, 0, 0, time.UTC)
	later := time.Date(2026, 8, 26, 22, 0, 0, 0, time.UTC)
	a := mustCompute(t, 1994, 10, 3, 19)
	b := mustCompute(t, 1987, 1, 20, 6)

	if Daily(a, day) != Daily(a, later) {
		t.Error("same user, same calendar day must yield the same fortune")
	}

	ra, rb := Daily(a, day), Daily(b, day)
	if ra.DayPillar != rb.DayPillar {
		t.Errorf("day pillar must not depend on the user: %v vs %v", ra.DayPillar, rb.DayPillar)
	}
	if ra == rb {
		t.Error("different charts should not collapse to identical fortunes")
	}
}

func TestDailyClashForcesNeutral(t *testing.T) {
	// Find a day whose branch clashes the user's day branch; the category
	// must be neutral regardless of the stem relation.
	p := mustCompute(t, 1994, 10, 3, 19)
	for i := 0; i < 12; i++ {
		day := time.Date(2026, 3, 1+i, 0, 0, 0, 0, time.UTC)
		pillar := saju.DayPillarOf(day.Year(), int(day.Month()), day.Day())
		if saju.IsClash(pillar.Branch, p.Day.Branch) {
			if got := Daily(p, day); got.Category != DailyNeutral {
				t.Errorf("clash day %s category = %s, want 중립", got.Date, got.Category)
			}
			return
		}
	}
	t.Fatal("no clash day found in a 12-day window, branch wheel broken")
}

func TestPickDatesSortedAndClamped(t *testing.T) {
	p := mustCompute(t, 1990, 5, 5, 5)
	start := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	days := PickDates(p, EventMoving, start, 14)
	if len(days) != 14 {
		t.Fatalf("got %d days, want 14", len(days))
	}
	for i, d := range days {
		if d.Score < 15 || d.Score > 100 {
			t.Errorf("day %s score %d outside [15,100]", d.Date, d.Score)
		}
		if i > 0 && days[i-1].Score < d.Score {
			t.Errorf("days not sorted best-first at index %d", i)
		}
	}
}

func TestPickDatesClashPenalty(t *testing.T) {
	p := mustCompute(t, 1990, 5, 5, 5)
	start := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

	for _, d := range PickDates(p, EventContract, start, 30) {
		if saju.IsClash(d.Pillar.Branch, p.Day.Branch) && d.Score > datePickBase+datePickClash+datePickSameElem {
			t.Errorf("clash day %s scored %d, penalty not applied", d.Date, d.Score)
		}
	}
}

func TestElementDistributionSumsToEight(t *testing.T) {
	p := mustCompute(t, 1994, 10, 3, 19)
	out := ElementDistribution(p)

	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5:\n%s", len(lines), out)
	}
	total := 0
	for _, line := range lines {
		total += strings.Count(line, "█")
	}
	if total != 8 {
		t.Errorf("bars sum to %d, want 8:\n%s", total, out)
	}
}
