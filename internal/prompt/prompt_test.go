package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/haneul-labs/saju-engine/internal/fortune"
	"github.com/haneul-labs/saju-engine/internal/saju"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

func TestParseFreemiumTagged(t *testing.T) {
	in := "서론 무시 [FREE]a[/FREE] 중간 [PREMIUM]b[/PREMIUM] 꼬리"
	got := ParseFreemium(in)
	if !got.HasPremium {
		t.Fatal("hasPremium = false, want true")
	}
	if got.FreeText != "a" || got.PremiumText != "b" {
		t.Errorf("got free=%q premium=%q, want a / b", got.FreeText, got.PremiumText)
	}
}

func TestParseFreemiumUntagged(t *testing.T) {
	got := ParseFreemium("그냥 평범한 답변입니다.")
	if got.HasPremium {
		t.Error("hasPremium = true for untagged text")
	}
	if got.FreeText != "그냥 평범한 답변입니다." {
		t.Errorf("free = %q, want whole text", got.FreeText)
	}
}

func TestParseFreemiumMissingClosers(t *testing.T) {
	got := ParseFreemium("[FREE]열린 도입[PREMIUM]결론은 이것")
	if got.FreeText != "열린 도입" {
		t.Errorf("free = %q, want 열린 도입", got.FreeText)
	}
	if !got.HasPremium || got.PremiumText != "결론은 이것" {
		t.Errorf("premium = %q (has=%v), want 결론은 이것", got.PremiumText, got.HasPremium)
	}
}

func TestCorrectDayPillar(t *testing.T) {
	correct := saju.Pillar{Stem: 4, Branch: 4} // 무진
	in := "당신은 갑자일에 태어나 기운이 강합니다. 매일매일 좋은 일이 있을 거예요."
	got := CorrectDayPillar(in, correct)

	if strings.Contains(got, "갑자일") {
		t.Error("hallucinated 갑자일 survived correction")
	}
	if !strings.Contains(got, "무진일") {
		t.Error("corrected pillar 무진일 missing")
	}
	if !strings.Contains(got, "매일매일") {
		t.Error("non-ganzi ...일 text was mutated")
	}
}

func TestCorrectDayPillarHandlesHanja(t *testing.T) {
	correct := saju.Pillar{Stem: 4, Branch: 4}
	got := CorrectDayPillar("甲子일 생이시네요", correct)
	if !strings.Contains(got, "무진일") {
		t.Errorf("hanja day pillar not corrected: %q", got)
	}
}

func TestCorrectDayPillarLeavesCorrectAlone(t *testing.T) {
	correct := saju.Pillar{Stem: 4, Branch: 4}
	in := "무진일 생은 뚝심이 있습니다."
	if got := CorrectDayPillar(in, correct); got != in {
		t.Errorf("correct text mutated: %q", got)
	}
}

func TestDetectTone(t *testing.T) {
	tests := []struct {
		text string
		want Tone
	}{
		{"올해 연애운 어때요?", ToneFormal},
		{"올해 운세 알려주세요", ToneFormal},
		{"제 사주 좀 봐주시겠습니까", ToneFormal},
		{"올해 연애운 어때?", ToneInformal},
		{"내 사주 봐줘", ToneInformal},
	}
	for _, tt := range tests {
		if got := DetectTone(tt.text); got != tt.want {
			t.Errorf("DetectTone(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func fixedKST() time.Time {
	return time.Date(2026, 8, 26, 8, 0, 0, 0, time.FixedZone("KST", 9*3600))
}

func chartCtx(t *testing.T) ChartContext {
	t.Helper()
	p, err := saju.Compute(1994, 10, 3, 19)
	if err != nil {
		t.Fatal(err)
	}
	return ChartContext{
		Pillars:  p,
		Strength: saju.EvaluateStrength(p),
		YearLuck: saju.EvaluateYearLuck(p, 2026),
	}
}

func TestGeneralPromptInjectsConstants(t *testing.T) {
	b := NewBuilder(fixedKST)
	c := chartCtx(t)

	req := b.General(ToneInformal, "올해 연애운 어때?", c, nil, nil)

	if !strings.Contains(req.System, "2026년 8월 26일") {
		t.Error("current KST date missing from system prompt")
	}
	if !strings.Contains(req.System, string(c.YearLuck.Yukchin)) {
		t.Error("precomputed year yukchin missing from system prompt")
	}
	if !strings.Contains(req.System, c.Pillars.Day.Hangul()) {
		t.Error("day pillar missing from system prompt")
	}
	if !strings.Contains(req.System, "[FREE]") || !strings.Contains(req.System, "[PREMIUM]") {
		t.Error("freemium rule missing from paid-track prompt")
	}
}

func TestDailyPushPromptAndFallback(t *testing.T) {
	b := NewBuilder(fixedKST)
	c := chartCtx(t)
	daily := fortune.Daily(c.Pillars, fixedKST())

	req := b.DailyPush("지연", c, daily, []models.InterestCategory{models.InterestLove})
	if req.MaxTokens != pushTokens {
		t.Errorf("push max tokens = %d, want %d", req.MaxTokens, pushTokens)
	}
	if !strings.Contains(req.System, CategoryEmoji[models.InterestLove]) {
		t.Error("category emoji missing from push prompt")
	}

	fb := PushFallback(models.InterestLove, "지연", daily)
	if !ValidPush(fb, models.InterestLove) {
		t.Errorf("fallback template violates its own post-rules:\n%s", fb)
	}
}

func TestValidPushRules(t *testing.T) {
	ok := "💰 오늘의 금전운!\n████ 시간대에 ████ 기회가 오고 ████ 지출과 ████ 계약은 조심.\n오늘 어떤 돈이 들어올까?"
	if !ValidPush(ok, models.InterestWealth) {
		t.Error("well-formed push rejected")
	}
	noEmoji := strings.Replace(ok, "💰 ", "", 1)
	if ValidPush(noEmoji, models.InterestWealth) {
		t.Error("push without emoji accepted")
	}
	few := strings.Replace(ok, "████ 시간대에 ████ 기회가", "아침 시간대에 좋은 기회가", 1)
	if ValidPush(few, models.InterestWealth) {
		t.Error("push with under four blanks accepted")
	}
	noQuestion := strings.TrimSuffix(ok, "?") + "."
	if ValidPush(noQuestion, models.InterestWealth) {
		t.Error("push not ending in a question accepted")
	}
}

func TestBlurKeepsShape(t *testing.T) {
	got := Blur("10월 말, 계약을 미루세요.")
	if strings.ContainsAny(got, "계약미루세요") {
		t.Errorf("blurred text leaks content: %q", got)
	}
	if !strings.Contains(got, ",") || !strings.Contains(got, ".") {
		t.Errorf("punctuation should survive blurring: %q", got)
	}
}
