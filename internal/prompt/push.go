package prompt

import (
	"fmt"
	"strings"

	"github.com/haneul-labs/saju-engine/internal/fortune"
	"github.com/haneul-labs/saju-engine/internal/llm"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// CategoryEmoji keys the push's first line; the post-rule check looks
// for it verbatim.
var CategoryEmoji = map[models.InterestCategory]string{
	models.InterestLove:    "💕",
	models.InterestWealth:  "💰",
	models.InterestCareer:  "💼",
	models.InterestHealth:  "🌿",
	models.InterestStudy:   "📚",
	models.InterestFamily:  "🏠",
	models.InterestFortune: "🔮",
	models.InterestTiming:  "⏰",
	models.InterestGeneral: "✨",
}

const pushBlank = "████"

// DailyPush builds the morning push package. The blanks are the hook:
// the reader taps through to see what hides behind them.
func (b *Builder) DailyPush(name string, c ChartContext, daily fortune.DailyResult, categories []models.InterestCategory) llm.Request {
	category := models.InterestGeneral
	if len(categories) > 0 {
		category = categories[0]
	}

	catLine := make([]string, 0, len(categories))
	for _, cat := range categories {
		catLine = append(catLine, string(cat))
	}

	system := strings.Join([]string{
		"너는 매일 아침 오늘의 운세를 보내주는 사주 상담가다. 한국어로만 답한다.",
		b.dateLine(),
		b.chartBlock(c),
		fmt.Sprintf("오늘의 일진: %s일, 일간과의 관계는 %s, 종합 %d점.",
			daily.DayPillar.Hangul(), daily.Category, daily.Overall),
		fmt.Sprintf("이 사용자의 관심사: %s. 첫 관심사를 중심으로 쓴다.", strings.Join(catLine, ", ")),
		"형식 규칙(어기면 안 됨):",
		fmt.Sprintf("- 첫 줄에 %s 이모지를 반드시 넣는다.", CategoryEmoji[category]),
		fmt.Sprintf("- 핵심 시간대·장소·행동 네 가지 이상을 %s 로 가린다.", pushBlank),
		"- 마지막 줄은 반드시 궁금증을 유발하는 질문으로 끝낸다(물음표).",
		"전체 250자 이내, 반말.",
	}, "\n")

	user := name + "의 오늘 아침 운세를 써줘."
	return llm.Request{System: system, Messages: []llm.Message{{Role: "user", Content: user}}, MaxTokens: pushTokens, Temperature: 1.0}
}

// ValidPush checks the three post-rules on a generated push: emoji in
// the first line, at least four blanks, question-mark ending.
func ValidPush(text string, category models.InterestCategory) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	lines := strings.Split(text, "\n")
	if !strings.Contains(lines[0], CategoryEmoji[category]) {
		return false
	}
	if strings.Count(text, pushBlank) < 4 {
		return false
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	return strings.HasSuffix(last, "?") || strings.HasSuffix(last, "？")
}

// pushFallbacks are the per-category templates used when the LLM fails
// or breaks the post-rules. %s slots: name, day pillar, grade.
var pushFallbacks = map[models.InterestCategory]string{
	models.InterestLove:    "%s %s, 오늘은 %s일이야. 오늘 연애 기류는 '%s' 흐름! ████에 만나는 사람과 ████ 얘기가 잘 풀리고, ████ 시간대엔 ████ 연락이 올 수도. 오늘 그 사람한테 먼저 연락해볼까?",
	models.InterestWealth:  "%s %s, 오늘은 %s일이야. 금전운은 '%s' 흐름이야. ████ 시간대 ████ 관련 지출은 아끼고, ████에서 생기는 ████ 기회는 잡아봐. 오늘 들어올 돈, 어디서 올지 궁금하지 않아?",
	models.InterestCareer:  "%s %s, 오늘은 %s일이야. 일 운은 '%s'! ████ 회의에서 ████ 얘기가 나오면 기회고, ████ 시간대엔 ████을 조심해. 오늘 상사가 너를 어떻게 보고 있을까?",
	models.InterestGeneral: "%s %s, 오늘은 %s일이야. 전체 흐름은 '%s'! ████ 시간대가 고비고, ████에서 ████을 만나면 ████ 행운이 따라와. 오늘 너의 행운의 방향이 어딘지 알아?",
}

// PushFallback interpolates the per-category template. Categories
// without a template fall back to the general one.
func PushFallback(category models.InterestCategory, name string, daily fortune.DailyResult) string {
	tmpl, ok := pushFallbacks[category]
	if !ok {
		tmpl = pushFallbacks[models.InterestGeneral]
	}
	emoji := CategoryEmoji[category]
	if emoji == "" {
		emoji = CategoryEmoji[models.InterestGeneral]
	}
	return fmt.Sprintf(tmpl, emoji, name, daily.DayPillar.Hangul(), daily.Grade)
}
