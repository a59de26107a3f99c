// Package fortune holds the deterministic domain analyzers that feed the
// LLM prompts: compatibility, wealth, daily fortune and auspicious-date
// scoring. Every function here is pure and table-driven over pillar
// output from internal/saju; no I/O, no wall clock. Where a score needs
// per-user variety the jitter is seeded from the chart and the calendar
// day so repeated calls agree within a day.
package fortune

import "hash/fnv"

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// seededJitter maps a tuple of seed values to a stable integer in
// [-spread, +spread]. FNV keeps neighbouring seeds uncorrelated enough
// for presentation purposes without pulling in math/rand state.
func seededJitter(spread int, seeds ...int) int {
	h := fnv.New32a()
	var buf [4]byte
	for _, s := range seeds {
		buf[0] = byte(s)
		buf[1] = byte(s >> 8)
		buf[2] = byte(s >> 16)
		buf[3] = byte(s >> 24)
		h.Write(buf[:])
	}
	span := 2*spread + 1
	return int(h.Sum32())%span - spread
}

// grade buckets shared by the scorers.
func gradeOf(score int) string {
	switch {
	case score >= 85:
		return "최상"
	case score >= 70:
		return "좋음"
	case score >= 55:
		return "보통"
	case score >= 40:
		return "주의"
	default:
		return "나쁨"
	}
}
