package prompt

import (
	"strings"

	"github.com/haneul-labs/saju-engine/internal/saju"
)

// CorrectDayPillar replaces any hallucinated "간지일" token with the
// deterministically computed one. Only the sixty known cycle names are
// touched; any other "...일" substring passes through. Hanja is folded
// to hangul first so "甲子일" is caught too.
func CorrectDayPillar(text string, correct saju.Pillar) string {
	text = saju.NormalizeGanzi(text)
	want := correct.Hangul() + "일"
	for _, token := range saju.DayTokens() {
		if token == want {
			continue
		}
		if strings.Contains(text, token) {
			text = strings.ReplaceAll(text, token, want)
		}
	}
	return text
}
