// Package intent turns raw Korean utterances into structured decisions:
// birth-tuple parsing, interest categorization and the message/intent
// classification the orchestrator branches on. Everything is rule-based
// and deterministic; the LLM never sees an utterance before this package
// has decided what it is.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/haneul-labs/saju-engine/pkg/models"
)

// Birth text comes in many shapes:
//
//	1994년 10월 3일 오후 7시 30분 여성
//	1994-10-03 19:30 여
//	1994.10.3 저녁 7시 반 남자
//
// The parser extracts the pieces independently and validates the ranges
// at the end; a missing hour defaults to noon, which keeps the hour
// pillar meaningful without demanding precision users rarely have.
var (
	dateKoreanRe = regexp.MustCompile(`(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일`)
	dateDigitsRe = regexp.MustCompile(`(\d{4})[.\-/](\d{1,2})[.\-/](\d{1,2})`)
	hourKoreanRe = regexp.MustCompile(`(\d{1,2})\s*시(?:\s*(\d{1,2})\s*분|\s*(반))?`)
	hourDigitsRe = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

const defaultBirthHour = 12

// ParseBirth extracts a birth tuple from an utterance. The boolean is
// false when no date is present; a date with out-of-range parts returns
// an invalid tuple error through Validate at the call site.
func ParseBirth(text string) (models.BirthInput, bool) {
	var b models.BirthInput

	m := dateKoreanRe.FindStringSubmatch(text)
	if m == nil {
		m = dateDigitsRe.FindStringSubmatch(text)
	}
	if m == nil {
		return b, false
	}
	b.Year = atoi(m[1])
	b.Month = atoi(m[2])
	b.Day = atoi(m[3])

	b.Hour, b.Minute = parseClock(text)
	b.Gender = parseGender(text)
	return b, true
}

func parseClock(text string) (hour, minute int) {
	hour = defaultBirthHour

	if m := hourDigitsRe.FindStringSubmatch(text); m != nil {
		return atoi(m[1]), atoi(m[2])
	}

	m := hourKoreanRe.FindStringSubmatch(text)
	if m == nil {
		return hour, 0
	}
	raw := atoi(m[1])
	hour = raw
	if m[2] != "" {
		minute = atoi(m[2])
	} else if m[3] == "반" {
		minute = 30
	}

	// 오후/저녁/밤 push hours below 12 into the afternoon; 새벽/오전 keep
	// them as-is. "밤 12시" is midnight by convention.
	afternoon := strings.Contains(text, "오후") || strings.Contains(text, "저녁") || strings.Contains(text, "밤")
	if afternoon && raw < 12 {
		hour = raw + 12
	}
	if strings.Contains(text, "밤") && raw == 12 {
		hour = 0
	}
	if hour == 24 {
		hour = 0
	}
	return hour, minute
}

func parseGender(text string) models.Gender {
	switch {
	case strings.Contains(text, "여"):
		return models.GenderFemale
	case strings.Contains(text, "남"):
		return models.GenderMale
	default:
		return ""
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
