package intent

import (
	"regexp"
	"strings"

	"github.com/haneul-labs/saju-engine/pkg/models"
)

// Intent is what the orchestrator should do with an utterance, resolved
// before any message-class consideration.
type Intent string

const (
	IntentNone          Intent = ""
	IntentCompatibility Intent = "compatibility"
	IntentWealth        Intent = "wealth"
	IntentDatePick      Intent = "date_pick"
	IntentDailyFortune  Intent = "daily_fortune"
)

var (
	compatibilityRe = regexp.MustCompile(`궁합|잘\s*맞|어울리|결혼\s*상대|인연`)
	wealthRe        = regexp.MustCompile(`재물운|금전운|돈\s*(이|운|복)|투자\s*운|부자|재테크`)
	datePickRe      = regexp.MustCompile(`택일|길일|좋은\s*날(짜)?|날\s*잡|언제\s*(이사|계약|결혼|개업)`)
	dailyFortuneRe  = regexp.MustCompile(`오늘\s*(의)?\s*운세|오늘\s*운|일진`)
)

// DetectIntent resolves the analyzer-routing intents. Daily fortune is
// checked first so "오늘 운세" never falls into the generic wealth bucket;
// compatibility beats wealth because 궁합 questions often mention money.
func DetectIntent(text string) Intent {
	switch {
	case dailyFortuneRe.MatchString(text):
		return IntentDailyFortune
	case compatibilityRe.MatchString(text):
		return IntentCompatibility
	case datePickRe.MatchString(text):
		return IntentDatePick
	case wealthRe.MatchString(text):
		return IntentWealth
	default:
		return IntentNone
	}
}

// DatePickEvent extracts the occasion from a date-picking question,
// moving day by default.
func DatePickEvent(text string) string {
	for _, ev := range []string{"결혼", "계약", "개업", "여행", "시험", "이사"} {
		if strings.Contains(text, ev) {
			return ev
		}
	}
	return "이사"
}

// MessageClass buckets a non-intent utterance for templated handling.
type MessageClass string

const (
	ClassSaju     MessageClass = "saju"
	ClassCasual   MessageClass = "casual"
	ClassMeta     MessageClass = "meta"
	ClassHarmful  MessageClass = "harmful"
	ClassGreeting MessageClass = "greeting"
)

var (
	harmfulRe  = regexp.MustCompile(`자살|죽고\s*싶|자해|죽어버리|살기\s*싫`)
	greetingRe = regexp.MustCompile(`^\s*(안녕|하이|헬로|ㅎㅇ|반가워)`)
	metaRe     = regexp.MustCompile(`너\s*(누구|뭐)|봇이[야니]|AI\s*(야|니|임)|인공지능|챗봇|만든\s*사람`)
	sajuRe     = regexp.MustCompile(`사주|운세|운\s*(이|은|좋|나쁘)|팔자|오행|십신|대운|세운|연애운|직업운|취업운|승진|이직|건강운|학업운|시험운|궁합|올해|내년|내\s*(성격|적성)`)
)

// ClassifyMessage buckets an utterance. Harmful detection wins over
// everything; greetings only when the message opens with one.
func ClassifyMessage(text string) MessageClass {
	switch {
	case harmfulRe.MatchString(text):
		return ClassHarmful
	case greetingRe.MatchString(text) && len([]rune(strings.TrimSpace(text))) <= 10:
		return ClassGreeting
	case metaRe.MatchString(text):
		return ClassMeta
	case sajuRe.MatchString(text):
		return ClassSaju
	default:
		return ClassCasual
	}
}

// interestKeywords drives the multi-label interest classifier. A single
// utterance may hit several categories; none means general.
var interestKeywords = map[models.InterestCategory][]string{
	models.InterestLove:    {"연애", "사랑", "애인", "남친", "여친", "남자친구", "여자친구", "결혼", "궁합", "짝사랑", "인연", "소개팅"},
	models.InterestWealth:  {"돈", "재물", "금전", "투자", "주식", "부동산", "재테크", "대출", "부자", "월급", "연봉"},
	models.InterestCareer:  {"직장", "직업", "취업", "이직", "승진", "사업", "창업", "일자리", "커리어", "면접"},
	models.InterestHealth:  {"건강", "몸", "병", "아프", "수술", "다이어트", "체력"},
	models.InterestStudy:   {"공부", "시험", "학업", "합격", "수능", "자격증", "유학"},
	models.InterestFamily:  {"가족", "부모", "엄마", "아빠", "자식", "아이", "형제", "자매", "육아"},
	models.InterestFortune: {"운세", "사주", "팔자", "오행", "대운", "올해", "내년", "신년"},
	models.InterestTiming:  {"언제", "시기", "타이밍", "몇 살", "몇살", "몇 년", "날짜"},
}

// ClassifyInterests returns every category an utterance touches,
// [general] when nothing matches.
func ClassifyInterests(text string) []models.InterestCategory {
	var out []models.InterestCategory
	for _, cat := range []models.InterestCategory{
		models.InterestLove, models.InterestWealth, models.InterestCareer,
		models.InterestHealth, models.InterestStudy, models.InterestFamily,
		models.InterestFortune, models.InterestTiming,
	} {
		for _, kw := range interestKeywords[cat] {
			if strings.Contains(text, kw) {
				out = append(out, cat)
				break
			}
		}
	}
	if len(out) == 0 {
		out = append(out, models.InterestGeneral)
	}
	return out
}
