package orchestrator

import (
	"fmt"
	"time"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// User-facing template texts. Everything the orchestrator says outside
// of LLM output lives here.

const (
	welcomeText = `안녕하세요! 사주로 당신의 이야기를 읽어드리는 사주 친구예요 🔮

생년월일시를 알려주시면 바로 풀이를 시작할게요.
예시: 1994년 10월 3일 오후 7시 30분 여성`

	askBirthText = `사주를 보려면 생년월일시가 필요해요.
이렇게 보내주세요: 1994년 10월 3일 오후 7시 30분 여성
(태어난 시간을 모르면 시간은 빼고 보내주셔도 돼요)`

	birthRetryText = `생년월일을 읽지 못했어요 😅
이런 형식으로 다시 보내주시겠어요?
1994년 10월 3일 오후 7시 30분 여성`

	askPartnerText = `궁합을 보려면 상대방의 생년월일시가 필요해요.
이렇게 보내주세요: 1995년 3월 15일 오후 2시 남성`

	partnerRetryText = `상대방의 생년월일을 읽지 못했어요.
예시처럼 보내주시면 바로 궁합을 봐드릴게요: 1995년 3월 15일 오후 2시 남성`

	resetDoneText = `프로필을 초기화했어요. 새 생년월일시를 알려주시면 다시 시작할게요.`

	greetingReplyText = `안녕하세요! 오늘 하루는 어떠세요? 사주에 대해 궁금한 게 있으면 편하게 물어봐 주세요 😊`

	metaReplyText = `저는 사주 명리학을 공부한 AI 상담가예요. 생년월일시로 명식을 뽑아 풀이해드려요.
운세, 궁합, 재물운, 택일까지 물어보실 수 있어요.`

	casualReplyText = `그런 이야기도 좋죠 😊 혹시 요즘 마음에 걸리는 일이 있다면 사주로 흐름을 봐드릴까요?`

	harmfulReplyText = `많이 힘드셨겠어요. 혼자 견디지 않으셔도 돼요.
자살예방 상담전화 ☎ 1393 (24시간), 정신건강 위기상담 ☎ 1577-0199
지금 이 순간 당신 곁에 도움이 있어요. 꼭 연락해 보세요.`

	llmDisabledText = `지금은 풀이 엔진 점검 중이라 상세 풀이를 드릴 수 없어요. 잠시 후 다시 시도해 주세요 🙏`

	apologyText = `죄송해요, 풀이 중에 문제가 생겼어요 😢 잠시 후 다시 물어봐 주시겠어요?`

	unlockUpsellText = `프리미엄 풀이는 구독 또는 이용권으로 볼 수 있어요 ✨
'초대'를 입력해 친구를 초대하면 무료 열람권을 드려요!`

	nothingToUnlockText = `지금 열어볼 프리미엄 풀이가 없어요. 먼저 궁금한 걸 물어봐 주세요!`

	unlockSpentText = `무료 열람권 1장을 사용했어요 🎟`
)

func rateLimitedText(retryAfter time.Duration) string {
	sec := int(retryAfter.Seconds())
	if sec < 1 {
		sec = 1
	}
	return fmt.Sprintf("너무 빨라요! %d초만 쉬었다가 다시 보내주세요 🙏", sec)
}

func quotaExceededText(tier models.Tier) string {
	switch tier {
	case models.TierPremium:
		return "오늘 정말 많은 이야기를 나눴네요! 내일 아침에 다시 찾아와 주세요 🌙"
	case models.TierBasic:
		return "오늘의 질문 10개를 모두 쓰셨어요. 프리미엄으로 올리면 무제한으로 물어볼 수 있어요 ✨"
	default:
		return "오늘의 무료 질문 3개를 모두 쓰셨어요. 베이식 플랜이면 하루 10개까지 가능해요 ✨"
	}
}

// errorReply maps a failure to the user-visible apology per kind. The
// generic branch appends the kind name so ops can match user reports to
// logs.
func errorReply(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindRateLimited:
		return rateLimitedText(apperr.RetryAfterOf(err))
	case apperr.KindValidation:
		return birthRetryText
	case apperr.KindUpstreamTimeout, apperr.KindUpstreamUnavailable:
		return apologyText
	default:
		return fmt.Sprintf("오류가 발생했어요 😢 (%s) 잠시 후 다시 시도해 주세요.", apperr.KindOf(err))
	}
}

func referralText(code string) string {
	return fmt.Sprintf(`친구에게 이 코드를 알려주세요: %s
친구가 /start %s 로 시작해서 사주를 등록하면 두 분 모두 무료 열람권 1장을 드려요 🎁`, code, code)
}

func profileShowText(p *models.Profile, pillarLine string) string {
	hourStr := fmt.Sprintf("%d시 %d분", p.Birth.Hour, p.Birth.Minute)
	gender := "여성"
	if p.Birth.Gender == models.GenderMale {
		gender = "남성"
	}
	return fmt.Sprintf(`등록된 프로필이에요.
🎂 %d년 %d월 %d일 %s生 (%s)
🔮 명식: %s

다시 입력하려면 '초기화'라고 보내주세요.`,
		p.Birth.Year, p.Birth.Month, p.Birth.Day, hourStr, gender, pillarLine)
}
