package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haneul-labs/saju-engine/internal/db"
	"github.com/haneul-labs/saju-engine/internal/kst"
	"github.com/haneul-labs/saju-engine/internal/llm"
	"github.com/haneul-labs/saju-engine/internal/manse"
	"github.com/haneul-labs/saju-engine/internal/platform"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// scriptedChat answers every completion with the same canned text.
type scriptedChat struct {
	mu    sync.Mutex
	text  string
	calls int
}

func (c *scriptedChat) Complete(_ context.Context, _ llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &llm.Response{Content: c.text}, nil
}

func (c *scriptedChat) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// recorder collects every reply an adapter would have delivered.
type recorder struct {
	mu      sync.Mutex
	replies []platform.Reply
}

func (r *recorder) Send(_ context.Context, reply platform.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply)
	return nil
}

func (r *recorder) last() platform.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replies[len(r.replies)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replies)
}

// testClock is a mutable fixed clock; Advance moves it past the spam
// throttle between turns.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 10, 14, 0, 0, 0, kst.Location())}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const taggedAnswer = "[FREE]일간이 기토라 올해는 흐름이 부드러워요.[PREMIUM]하반기 경쟁 구도에서 귀인이 돕는 달은 9월이에요."

func newTestOrchestrator(chat llm.ChatCompleter) (*Orchestrator, *db.MemoryStore, *testClock) {
	store := db.NewMemoryStore()
	clock := newTestClock()
	o := New(store, chat, manse.NewResolver("", store), nil, nil, clock.Now)
	o.progressRace = 50 * time.Millisecond
	o.progressTick = 20 * time.Millisecond
	return o, store, clock
}

func inboundText(user, text string) Inbound {
	return Inbound{Platform: models.PlatformTelegram, UserID: user, DisplayName: "tester", Text: text}
}

func inboundTap(user, payload string) Inbound {
	return Inbound{Platform: models.PlatformTelegram, UserID: user, Callback: &Callback{ID: "cb1", Payload: payload}}
}

func registerUser(t *testing.T, o *Orchestrator, clock *testClock, user string) {
	t.Helper()
	r := &recorder{}
	err := o.Handle(context.Background(), inboundText(user, "1994년 10월 3일 오후 7시 30분 여성"), r)
	require.NoError(t, err)
	clock.Advance(5 * time.Second)
}

func TestRegistrationFlow(t *testing.T) {
	chat := &scriptedChat{text: taggedAnswer}
	o, store, clock := newTestOrchestrator(chat)
	r := &recorder{}
	ctx := context.Background()

	// No profile and no parseable date: ask for one.
	require.NoError(t, o.Handle(ctx, inboundText("u1", "사주 봐줘"), r))
	assert.Contains(t, r.last().Text, "생년월일시가 필요해요")
	clock.Advance(5 * time.Second)

	// Digits that fail to parse get the retry phrasing.
	require.NoError(t, o.Handle(ctx, inboundText("u1", "94년생이야"), r))
	assert.Contains(t, r.last().Text, "읽지 못했어요")
	clock.Advance(5 * time.Second)

	// A full tuple registers and triggers the first reading.
	require.NoError(t, o.Handle(ctx, inboundText("u1", "1994년 10월 3일 오후 7시 30분 여성"), r))

	p, err := store.GetProfile(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1994, p.Birth.Year)
	assert.Equal(t, 19, p.Birth.Hour)
	assert.Equal(t, 30, p.Birth.Minute)
	assert.Equal(t, models.GenderFemale, p.Birth.Gender)
	assert.True(t, p.IsActive)
	assert.NotEmpty(t, p.ReferralCode)

	// Ack plus the reading itself, with the element block always present.
	require.GreaterOrEqual(t, r.count(), 4)
	assert.Contains(t, r.last().Text, "🌿 오행 분포")

	// The first reading billed exactly one unit.
	used, err := store.DailyUsage(ctx, models.PlatformTelegram, "u1", kst.DayKey(clock.Now()))
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestThrottleRejectsBursts(t *testing.T) {
	o, _, clock := newTestOrchestrator(nil)
	r := &recorder{}
	ctx := context.Background()

	require.NoError(t, o.Handle(ctx, inboundText("u1", "안녕"), r))
	clock.Advance(time.Second)
	require.NoError(t, o.Handle(ctx, inboundText("u1", "안녕"), r))
	assert.Contains(t, r.last().Text, "너무 빨라요")

	// A different user in the same burst window is unaffected.
	require.NoError(t, o.Handle(ctx, inboundText("u2", "안녕"), r))
	assert.NotContains(t, r.last().Text, "너무 빨라요")
}

func TestFreeTierQuotaExhausts(t *testing.T) {
	chat := &scriptedChat{text: taggedAnswer}
	o, store, clock := newTestOrchestrator(chat)
	r := &recorder{}
	ctx := context.Background()

	registerUser(t, o, clock, "u1") // bills 1 of 3

	require.NoError(t, o.Handle(ctx, inboundText("u1", "올해 직장운 어때?"), r))
	clock.Advance(5 * time.Second)
	require.NoError(t, o.Handle(ctx, inboundText("u1", "연애운은 어때?"), r))
	clock.Advance(5 * time.Second)

	used, err := store.DailyUsage(ctx, models.PlatformTelegram, "u1", kst.DayKey(clock.Now()))
	require.NoError(t, err)
	require.Equal(t, 3, used)

	// Fourth billable ask of the KST day bounces without touching the LLM.
	before := chat.callCount()
	require.NoError(t, o.Handle(ctx, inboundText("u1", "재물운 봐줘"), r))
	assert.Contains(t, r.last().Text, "무료 질문 3개")
	assert.Equal(t, before, chat.callCount())

	used, err = store.DailyUsage(ctx, models.PlatformTelegram, "u1", kst.DayKey(clock.Now()))
	require.NoError(t, err)
	assert.Equal(t, 3, used)

	// The counter rolls over with the KST day.
	clock.Advance(24 * time.Hour)
	require.NoError(t, o.Handle(ctx, inboundText("u1", "내년 운세가 궁금해"), r))
	used, err = store.DailyUsage(ctx, models.PlatformTelegram, "u1", kst.DayKey(clock.Now()))
	require.NoError(t, err)
	assert.Equal(t, 1, used)
}

func TestCompatibilitySlotFlow(t *testing.T) {
	chat := &scriptedChat{text: taggedAnswer}
	o, store, clock := newTestOrchestrator(chat)
	r := &recorder{}
	ctx := context.Background()

	registerUser(t, o, clock, "u1")

	require.NoError(t, o.Handle(ctx, inboundText("u1", "남자친구랑 궁합 봐줘"), r))
	assert.Contains(t, r.last().Text, "상대방의 생년월일시")
	clock.Advance(5 * time.Second)

	slot, err := store.GetPending(ctx, models.PlatformTelegram, "u1", models.PendingCompatibility)
	require.NoError(t, err)
	require.NotNil(t, slot)

	// Garbage re-prompts and keeps the slot.
	require.NoError(t, o.Handle(ctx, inboundText("u1", "몰라 그냥 봐줘"), r))
	assert.Contains(t, r.last().Text, "읽지 못했어요")
	slot, err = store.GetPending(ctx, models.PlatformTelegram, "u1", models.PendingCompatibility)
	require.NoError(t, err)
	require.NotNil(t, slot)
	clock.Advance(5 * time.Second)

	// The partner tuple consumes the slot and runs the analysis.
	require.NoError(t, o.Handle(ctx, inboundText("u1", "1995년 3월 15일 오후 2시 남성"), r))
	assert.Contains(t, r.last().Text, "💞 궁합 명식")

	slot, err = store.GetPending(ctx, models.PlatformTelegram, "u1", models.PendingCompatibility)
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestHarmfulContentShortCircuits(t *testing.T) {
	chat := &scriptedChat{text: taggedAnswer}
	o, store, clock := newTestOrchestrator(chat)
	r := &recorder{}
	ctx := context.Background()

	registerUser(t, o, clock, "u1")
	calls := chat.callCount()
	usedBefore, _ := store.DailyUsage(ctx, models.PlatformTelegram, "u1", kst.DayKey(clock.Now()))

	require.NoError(t, o.Handle(ctx, inboundText("u1", "요즘 죽고 싶다는 생각이 들어"), r))
	assert.Contains(t, r.last().Text, "1393")
	assert.Equal(t, calls, chat.callCount())

	used, _ := store.DailyUsage(ctx, models.PlatformTelegram, "u1", kst.DayKey(clock.Now()))
	assert.Equal(t, usedBefore, used)
}

func TestDatePickIsDeterministicAndUnbilled(t *testing.T) {
	chat := &scriptedChat{text: taggedAnswer}
	o, store, clock := newTestOrchestrator(chat)
	r := &recorder{}
	ctx := context.Background()

	registerUser(t, o, clock, "u1")
	calls := chat.callCount()
	usedBefore, _ := store.DailyUsage(ctx, models.PlatformTelegram, "u1", kst.DayKey(clock.Now()))

	require.NoError(t, o.Handle(ctx, inboundText("u1", "이사 택일 좀 해줘"), r))
	assert.Contains(t, r.last().Text, "📅 이사하기 좋은 날")
	assert.Equal(t, calls, chat.callCount())

	used, _ := store.DailyUsage(ctx, models.PlatformTelegram, "u1", kst.DayKey(clock.Now()))
	assert.Equal(t, usedBefore, used)
}

func TestDailyFortuneOffersUnlockChip(t *testing.T) {
	o, _, clock := newTestOrchestrator(nil)
	r := &recorder{}
	ctx := context.Background()

	registerUser(t, o, clock, "u1")

	require.NoError(t, o.Handle(ctx, inboundText("u1", "오늘 운세 알려줘"), r))
	reply := r.last()
	assert.Contains(t, reply.Text, "오늘의 운세")
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, platform.ActionDailyMore, reply.Actions[0].Payload)
}

func TestFreemiumSplitAndUnlockCallback(t *testing.T) {
	chat := &scriptedChat{text: taggedAnswer}
	o, store, clock := newTestOrchestrator(chat)
	r := &recorder{}
	ctx := context.Background()

	registerUser(t, o, clock, "u1")
	require.NoError(t, store.AddFreeUnlocks(ctx, models.PlatformTelegram, "u1", 1))

	require.NoError(t, o.Handle(ctx, inboundText("u1", "올해 이직운 어때?"), r))
	reply := r.last()
	assert.Contains(t, reply.Text, "일간이 기토라")
	assert.NotContains(t, reply.Text, "9월이에요")
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, platform.ActionUnlock, reply.Actions[0].Payload)
	clock.Advance(5 * time.Second)

	// The tap spends the free unlock and reveals the gated half.
	require.NoError(t, o.Handle(ctx, inboundTap("u1", platform.ActionUnlock), r))
	reply = r.last()
	assert.Contains(t, reply.Text, "무료 열람권 1장을 사용했어요")
	assert.Contains(t, reply.Text, "9월이에요")
	clock.Advance(5 * time.Second)

	p, err := store.GetProfile(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.FreeUnlocks)

	// A second tap with nothing left upsells instead.
	require.NoError(t, o.Handle(ctx, inboundTap("u1", platform.ActionUnlock), r))
	assert.Contains(t, r.last().Text, "프리미엄 풀이는 구독")
}

func TestPremiumTierSkipsUnlockSpend(t *testing.T) {
	chat := &scriptedChat{text: taggedAnswer}
	o, store, clock := newTestOrchestrator(chat)
	r := &recorder{}
	ctx := context.Background()

	registerUser(t, o, clock, "u1")
	until := clock.Now().Add(30 * 24 * time.Hour)
	require.NoError(t, store.SetPremiumUntil(ctx, models.PlatformTelegram, "u1", until))
	require.NoError(t, store.AddFreeUnlocks(ctx, models.PlatformTelegram, "u1", 1))

	require.NoError(t, o.Handle(ctx, inboundText("u1", "올해 연애운 봐줘"), r))
	clock.Advance(5 * time.Second)

	require.NoError(t, o.Handle(ctx, inboundTap("u1", platform.ActionUnlock), r))
	reply := r.last()
	assert.Contains(t, reply.Text, "9월이에요")
	assert.NotContains(t, reply.Text, "무료 열람권")

	p, err := store.GetProfile(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.FreeUnlocks)
}

func TestReferralSettlesOnRegistration(t *testing.T) {
	chat := &scriptedChat{text: taggedAnswer}
	o, store, clock := newTestOrchestrator(chat)
	ctx := context.Background()

	registerUser(t, o, clock, "inviter")
	inviter, err := store.GetProfile(ctx, models.PlatformTelegram, "inviter")
	require.NoError(t, err)
	require.NotEmpty(t, inviter.ReferralCode)

	r := &recorder{}
	require.NoError(t, o.Handle(ctx, inboundText("invitee", "/start "+inviter.ReferralCode), r))
	assert.Contains(t, r.last().Text, "생년월일시")
	clock.Advance(5 * time.Second)

	require.NoError(t, o.Handle(ctx, inboundText("invitee", "1999년 1월 2일 오전 8시 남성"), r))

	inviter, err = store.GetProfile(ctx, models.PlatformTelegram, "inviter")
	require.NoError(t, err)
	assert.Equal(t, 1, inviter.FreeUnlocks)

	invitee, err := store.GetProfile(ctx, models.PlatformTelegram, "invitee")
	require.NoError(t, err)
	assert.Equal(t, 1, invitee.FreeUnlocks)
}

func TestMetaCommands(t *testing.T) {
	chat := &scriptedChat{text: taggedAnswer}
	o, store, clock := newTestOrchestrator(chat)
	r := &recorder{}
	ctx := context.Background()

	registerUser(t, o, clock, "u1")

	require.NoError(t, o.Handle(ctx, inboundText("u1", "프로필"), r))
	assert.Contains(t, r.last().Text, "등록된 프로필이에요")
	assert.Contains(t, r.last().Text, "1994년 10월 3일")
	clock.Advance(5 * time.Second)

	require.NoError(t, o.Handle(ctx, inboundText("u1", "초대"), r))
	assert.Contains(t, r.last().Text, "ref_")
	clock.Advance(5 * time.Second)

	require.NoError(t, o.Handle(ctx, inboundText("u1", "초기화"), r))
	assert.Contains(t, r.last().Text, "초기화했어요")

	p, err := store.GetProfile(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGreetingAndMetaClassesSkipLLM(t *testing.T) {
	chat := &scriptedChat{text: taggedAnswer}
	o, _, clock := newTestOrchestrator(chat)
	r := &recorder{}
	ctx := context.Background()

	registerUser(t, o, clock, "u1")
	calls := chat.callCount()

	require.NoError(t, o.Handle(ctx, inboundText("u1", "안녕!"), r))
	assert.Contains(t, r.last().Text, "안녕하세요")
	clock.Advance(5 * time.Second)

	require.NoError(t, o.Handle(ctx, inboundText("u1", "너 누구야?"), r))
	assert.Contains(t, r.last().Text, "AI 상담가")
	assert.Equal(t, calls, chat.callCount())
}

func TestNilLLMDegradesGracefully(t *testing.T) {
	o, _, clock := newTestOrchestrator(nil)
	r := &recorder{}
	ctx := context.Background()

	registerUser(t, o, clock, "u1")

	require.NoError(t, o.Handle(ctx, inboundText("u1", "올해 재물운 어때?"), r))
	assert.Contains(t, r.last().Text, "💰 재물운 분석")
	assert.Contains(t, r.last().Text, "점검 중")
}

func TestTurnsAreSerializedPerUser(t *testing.T) {
	locks := newUserLocks(time.Now)

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.acquire("telegram|u1")
			defer release()
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
}
