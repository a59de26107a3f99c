package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/haneul-labs/saju-engine/internal/fortune"
	"github.com/haneul-labs/saju-engine/internal/llm"
	"github.com/haneul-labs/saju-engine/internal/saju"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// Token budgets per prompt package.
const (
	firstReadingTokens = 1400
	generalTokens      = 1600
	analysisTokens     = 1600
	pushTokens         = 450
	interimTokens      = 120
)

// ChartContext bundles the deterministic facts a prompt injects.
type ChartContext struct {
	Pillars  saju.Pillars
	Strength saju.Strength
	YearLuck saju.YearLuck
}

// Builder assembles prompt packages. The clock must already be in KST;
// it feeds the current-date line so relative time words resolve right.
type Builder struct {
	now func() time.Time
}

// NewBuilder builds a prompt builder over a KST clock.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

var weekdaysKorean = [7]string{"일요일", "월요일", "화요일", "수요일", "목요일", "금요일", "토요일"}

func (b *Builder) dateLine() string {
	n := b.now()
	return fmt.Sprintf("오늘은 %d년 %d월 %d일 %s이다. '올해'는 %d년을 뜻한다.",
		n.Year(), int(n.Month()), n.Day(), weekdaysKorean[n.Weekday()], n.Year())
}

// chartBlock renders the hard facts the model must not contradict. The
// year god comes pre-computed; the model re-deriving it wrong was a real
// failure mode.
func (b *Builder) chartBlock(c ChartContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "사주 명식(확정값, 절대 바꾸지 말 것):\n")
	fmt.Fprintf(&sb, "- 연주 %s, 월주 %s, 일주 %s, 시주 %s\n",
		c.Pillars.Year.Hangul(), c.Pillars.Month.Hangul(), c.Pillars.Day.Hangul(), c.Pillars.Hour.Hangul())
	fmt.Fprintf(&sb, "- 일간: %s(%s) / 신강약: %s\n",
		saju.StemHangul(c.Pillars.DayMaster()), c.Pillars.DayMasterElement().Korean(), c.Strength.Label)
	if c.YearLuck.Year != 0 {
		fmt.Fprintf(&sb, "- %d년 세운: %s, 일간 기준 육친은 %s(고정 상수)\n",
			c.YearLuck.Year, c.YearLuck.Pillar.Hangul(), c.YearLuck.Yukchin)
		for _, hit := range c.YearLuck.Hits {
			fmt.Fprintf(&sb, "- 세운 지지와 %s: %s\n", hit.Position, hit.Kind)
		}
	}
	return sb.String()
}

const freemiumRule = `답변은 반드시 두 구역으로 나눈다.
[FREE] 흥미를 끄는 도입과 전반적 흐름. 결정적인 시기나 결론은 절대 말하지 않는다. [/FREE]
[PREMIUM] 구체적인 시기, 해야 할 선택, 결론. [/PREMIUM]
태그는 정확히 이 형식으로 쓴다.`

// FirstReading is the long-form reading sent right after a profile is
// registered. No freemium split; this one is the hook.
func (b *Builder) FirstReading(tone Tone, birth models.BirthInput, c ChartContext) llm.Request {
	system := strings.Join([]string{
		"너는 수십 년 경력의 다정한 사주 상담가다. 한국어로만 답한다.",
		b.dateLine(),
		tone.Instruction(),
		b.chartBlock(c),
		"구성: 타고난 기질 → 오행 분포의 의미 → 올해의 큰 흐름 → 따뜻한 마무리 한 줄.",
		"명식 수치를 나열하지 말고 이야기로 풀어낸다. 700자 내외.",
	}, "\n\n")

	user := fmt.Sprintf("%d년 %d월 %d일 %d시 %d분생의 첫 사주 풀이를 들려줘.",
		birth.Year, birth.Month, birth.Day, birth.Hour, birth.Minute)

	return llm.Request{System: system, Messages: []llm.Message{{Role: "user", Content: user}}, MaxTokens: firstReadingTokens}
}

// General is the paid-track Q&A package grounded with history and
// retrieved classics.
func (b *Builder) General(tone Tone, question string, c ChartContext, history []llm.Message, chunks []models.ClassicsChunk) llm.Request {
	parts := []string{
		"너는 수십 년 경력의 다정한 사주 상담가다. 한국어로만 답한다.",
		b.dateLine(),
		tone.Instruction(),
		b.chartBlock(c),
	}
	if len(chunks) > 0 {
		var sb strings.Builder
		sb.WriteString("고전 참고 구절(근거로만 활용, 인용 표시는 하지 말 것):\n")
		for _, ch := range chunks {
			fmt.Fprintf(&sb, "- [%s·%s] %s\n", ch.Source, ch.Section, ch.Content)
		}
		parts = append(parts, sb.String())
	}
	parts = append(parts, freemiumRule)

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: question})

	return llm.Request{System: strings.Join(parts, "\n\n"), Messages: messages, MaxTokens: generalTokens}
}

// Compatibility interprets the computed couple scores.
func (b *Builder) Compatibility(tone Tone, question string, mine, partner ChartContext, r fortune.CompatibilityResult) llm.Request {
	system := strings.Join([]string{
		"너는 수십 년 경력의 다정한 사주 상담가다. 한국어로만 답한다.",
		b.dateLine(),
		tone.Instruction(),
		"본인 " + b.chartBlock(mine),
		"상대 " + b.chartBlock(partner),
		fmt.Sprintf("궁합 계산 결과(확정값): 총점 %d점(%s), 합 %d개, 충 %d개. %s",
			r.Overall, r.Grade, r.Combines, r.Clashes, r.Descriptor),
		fmt.Sprintf("세부: 감정 %d, 소통 %d, 금전 %d, 끌림 %d, 장기 %d.",
			r.Emotion, r.Communication, r.Wealth, r.Attraction, r.LongTerm),
		"점수의 이유를 두 명식의 관계로 풀어 설명한다.",
		freemiumRule,
	}, "\n\n")

	if question == "" {
		question = "우리 궁합 어때?"
	}
	return llm.Request{System: system, Messages: []llm.Message{{Role: "user", Content: question}}, MaxTokens: analysisTokens}
}

// Wealth interprets the computed wealth axes.
func (b *Builder) Wealth(tone Tone, question string, c ChartContext, r fortune.WealthResult) llm.Request {
	system := strings.Join([]string{
		"너는 수십 년 경력의 다정한 사주 상담가다. 한국어로만 답한다.",
		b.dateLine(),
		tone.Instruction(),
		b.chartBlock(c),
		fmt.Sprintf("재물 분석(확정값): 총점 %d점(%s). 안정성 %d, 기회 %d, 생산성 %d, 리스크 관리 %d, 시기 %d. 올해 세운 육친: %s.",
			r.Overall, r.Grade, r.Stability, r.Opportunity, r.Productivity, r.Risk, r.Timing, r.YearGod),
		freemiumRule,
	}, "\n\n")

	if question == "" {
		question = "내 재물운 깊게 봐줘."
	}
	return llm.Request{System: system, Messages: []llm.Message{{Role: "user", Content: question}}, MaxTokens: analysisTokens}
}

// Interim asks for the short "while you wait" line shown during a long
// analysis. Capped hard; this call must stay cheap.
func (b *Builder) Interim(tone Tone, question string) llm.Request {
	system := strings.Join([]string{
		"너는 사주 상담가다. 지금 명식을 뽑는 중이다.",
		tone.Instruction(),
		"사용자의 질문에 대한 기대를 한두 문장으로 끌어올려라. 분석 내용은 절대 미리 말하지 않는다.",
	}, "\n")
	return llm.Request{System: system, Messages: []llm.Message{{Role: "user", Content: question}}, MaxTokens: interimTokens, Temperature: 1.0}
}
