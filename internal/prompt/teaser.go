package prompt

import (
	"strings"
	"unicode"

	"github.com/haneul-labs/saju-engine/pkg/models"
)

// teasers are the one-liners shown above blurred premium text, chosen by
// the question's interest category.
var teasers = map[models.InterestCategory]string{
	models.InterestLove:    "🔒 그 사람과의 결정적 시기는 프리미엄에서 확인할 수 있어요.",
	models.InterestWealth:  "🔒 돈이 들어오는 구체적인 시기는 프리미엄에서 공개돼요.",
	models.InterestCareer:  "🔒 이직·승진의 최적 타이밍은 프리미엄에 담겨 있어요.",
	models.InterestHealth:  "🔒 조심해야 할 시기와 관리법은 프리미엄에서 확인하세요.",
	models.InterestStudy:   "🔒 합격운이 들어오는 시기는 프리미엄에서 알려드려요.",
	models.InterestFamily:  "🔒 가족 운의 전환점은 프리미엄에서 확인할 수 있어요.",
	models.InterestFortune: "🔒 올해의 결정적 전환점은 프리미엄에서 공개돼요.",
	models.InterestTiming:  "🔒 정확한 시기와 선택지는 프리미엄에 담겨 있어요.",
	models.InterestGeneral: "🔒 핵심 조언과 시기는 프리미엄에서 확인할 수 있어요.",
}

// Teaser returns the unlock line for a category.
func Teaser(category models.InterestCategory) string {
	if t, ok := teasers[category]; ok {
		return t
	}
	return teasers[models.InterestGeneral]
}

// Blur masks premium text for the free view: every hangul syllable,
// latin letter and digit becomes a block, punctuation and whitespace
// survive so the shape of the hidden answer stays visible.
func Blur(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune('█')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
