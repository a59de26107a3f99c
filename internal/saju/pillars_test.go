package saju

import "testing"

func TestYearPillarKnownYears(t *testing.T) {
	cases := []struct {
		year   int
		hangul string
	}{
		{1984, "갑자"},
		{1990, "경오"},
		{2024, "갑진"},
		{2025, "을사"},
		{2000, "경진"},
	}
	for _, tc := range cases {
		if got := YearPillar(tc.year).Hangul(); got != tc.hangul {
			t.Errorf("YearPillar(%d) = %s, want %s", tc.year, got, tc.hangul)
		}
	}
}

func TestMonthPillarFollowsDunwolRule(t *testing.T) {
	// First spring month (인월) stems by year-stem group:
	// 갑기 -> 병인, 을경 -> 무인, 병신 -> 경인, 정임 -> 임인, 무계 -> 갑인.
	cases := []struct {
		yearStem int
		hangul   string
	}{
		{0, "병인"}, {5, "병인"},
		{1, "무인"}, {6, "무인"},
		{2, "경인"}, {7, "경인"},
		{3, "임인"}, {8, "임인"},
		{4, "갑인"}, {9, "갑인"},
	}
	for _, tc := range cases {
		if got := monthPillar(tc.yearStem, 2).Hangul(); got != tc.hangul {
			t.Errorf("monthPillar(stem=%d, feb) = %s, want %s", tc.yearStem, got, tc.hangul)
		}
	}

	// Calendar wrap: January sits at 축, December at 자.
	if got := monthPillar(0, 1).Branch; got != 1 {
		t.Errorf("January branch = %d, want 1 (축)", got)
	}
	if got := monthPillar(0, 12).Branch; got != 0 {
		t.Errorf("December branch = %d, want 0 (자)", got)
	}
}

func TestDayPillarAnchorAndNeighbors(t *testing.T) {
	cases := []struct {
		y, m, d int
		hangul  string
	}{
		{2000, 1, 1, "무오"},
		{2000, 1, 2, "기미"},
		{1999, 12, 31, "정사"},
		{1990, 3, 15, "기묘"},
	}
	for _, tc := range cases {
		if got := DayPillarOf(tc.y, tc.m, tc.d).Hangul(); got != tc.hangul {
			t.Errorf("DayPillarOf(%04d-%02d-%02d) = %s, want %s", tc.y, tc.m, tc.d, got, tc.hangul)
		}
	}
}

func TestHourPillarWatchesAndStems(t *testing.T) {
	// 자시 wraps midnight: both 23:xx and 00:xx land on watch 0, and a
	// 갑 or 기 day opens at 갑자.
	for _, hour := range []int{23, 0} {
		p := hourPillar(0, hour)
		if p.Hangul() != "갑자" {
			t.Errorf("hourPillar(갑 day, %d시) = %s, want 갑자", hour, p.Hangul())
		}
	}
	if got := hourPillar(5, 0).Hangul(); got != "갑자" {
		t.Errorf("hourPillar(기 day, 0시) = %s, want 갑자", got)
	}
	// 병신 day opens at 무자.
	if got := hourPillar(2, 0).Hangul(); got != "무자" {
		t.Errorf("hourPillar(병 day, 0시) = %s, want 무자", got)
	}
	// 08:00 is the 진시 watch.
	if got := hourPillar(5, 8); got.Branch != 4 {
		t.Errorf("hourPillar(_, 8시) branch = %d, want 4 (진)", got.Branch)
	}
}

func TestComputeFullChart(t *testing.T) {
	p, err := Compute(1990, 3, 15, 8)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if got := p.Hangul(); got != "경오 기묘 기묘 무진" {
		t.Errorf("chart = %s, want 경오 기묘 기묘 무진", got)
	}
	if p.DayMaster() != 5 {
		t.Errorf("day master = %d, want 5 (기)", p.DayMaster())
	}
	if p.DayMasterElement() != Earth {
		t.Errorf("day master element = %v, want Earth", p.DayMasterElement())
	}

	counts := CountElements(p)
	want := [5]int{2, 1, 4, 1, 0} // wood fire earth metal water
	if counts != want {
		t.Errorf("element counts = %v, want %v", counts, want)
	}
}

func TestComputeRejectsImpossibleDates(t *testing.T) {
	cases := []struct {
		y, m, d, h int
	}{
		{1990, 2, 30, 12},
		{2001, 2, 29, 12},
		{1990, 13, 1, 12},
		{1990, 4, 31, 12},
		{1899, 1, 1, 12},
		{1990, 3, 15, 24},
	}
	for _, tc := range cases {
		if _, err := Compute(tc.y, tc.m, tc.d, tc.h); err == nil {
			t.Errorf("Compute(%04d-%02d-%02d %02d시) accepted an impossible tuple", tc.y, tc.m, tc.d, tc.h)
		}
	}
}

func TestComputeDeterministic(t *testing.T) {
	a, _ := Compute(1985, 11, 2, 23)
	b, _ := Compute(1985, 11, 2, 23)
	if a != b {
		t.Errorf("same tuple produced different charts: %v vs %v", a, b)
	}
}
