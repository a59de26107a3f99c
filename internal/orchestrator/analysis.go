package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/internal/db"
	"github.com/haneul-labs/saju-engine/internal/fortune"
	"github.com/haneul-labs/saju-engine/internal/intent"
	"github.com/haneul-labs/saju-engine/internal/llm"
	"github.com/haneul-labs/saju-engine/internal/pending"
	"github.com/haneul-labs/saju-engine/internal/platform"
	"github.com/haneul-labs/saju-engine/internal/prompt"
	"github.com/haneul-labs/saju-engine/internal/saju"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// chartFor resolves the pillars and derives the deterministic context a
// prompt needs.
func (o *Orchestrator) chartFor(ctx context.Context, birth models.BirthInput) (prompt.ChartContext, error) {
	pillars, err := o.manse.Resolve(ctx, birth)
	if err != nil {
		return prompt.ChartContext{}, err
	}
	return prompt.ChartContext{
		Pillars:  pillars,
		Strength: saju.EvaluateStrength(pillars),
		YearLuck: saju.EvaluateYearLuck(pillars, o.now().Year()),
	}, nil
}

// runBilled wraps a main analysis with the quota gate. The counter bumps
// only after the reply went out; failed turns cost nothing.
func (o *Orchestrator) runBilled(ctx context.Context, in Inbound, profile *models.Profile, r Responder, tone prompt.Tone, question string, run func(context.Context) (platform.Reply, error)) error {
	now := o.now()
	ent, err := o.quota.Check(ctx, profile, now)
	if err != nil {
		if apperr.Is(err, apperr.KindQuotaExceeded) {
			return r.Send(ctx, platform.Reply{Text: quotaExceededText(ent.Tier)})
		}
		return r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}

	if err := o.runWithProgress(ctx, r, tone, question, run); err != nil {
		return err
	}
	if berr := o.quota.RecordSuccess(ctx, in.Platform, in.UserID, o.now()); berr != nil {
		log.Warn().Err(berr).Str("user", in.UserID).Msg("usage increment failed")
	}
	return nil
}

// handleFirstReading sends the registration acknowledgement and the
// long-form first reading. The element-distribution block is rendered
// deterministically so it appears even when the LLM is down.
func (o *Orchestrator) handleFirstReading(ctx context.Context, in Inbound, profile *models.Profile, r Responder) error {
	b := profile.Birth
	ack := fmt.Sprintf("사주를 확인했어요! %d년 %d월 %d일 %d시 %d분生이시네요 ✨\n바로 첫 풀이를 준비할게요.",
		b.Year, b.Month, b.Day, b.Hour, b.Minute)
	if err := r.Send(ctx, platform.Reply{Text: ack}); err != nil {
		return err
	}

	tone := prompt.DetectTone(in.Text)
	return o.runBilled(ctx, in, profile, r, tone, "첫 사주 풀이", func(ctx context.Context) (platform.Reply, error) {
		chart, err := o.chartFor(ctx, profile.Birth)
		if err != nil {
			return platform.Reply{}, err
		}

		header := "🌿 오행 분포\n" + fortune.ElementDistribution(chart.Pillars)
		if o.chat == nil {
			return platform.Reply{Text: header + "\n\n" + llmDisabledText}, nil
		}

		resp, err := o.chat.Complete(ctx, o.prompts.FirstReading(tone, profile.Birth, chart))
		if err != nil {
			return platform.Reply{}, err
		}
		text := prompt.CorrectDayPillar(resp.Content, chart.Pillars.Day)
		return platform.Reply{Text: header + "\n\n" + text}, nil
	})
}

// handleSajuQuestion is the general paid-track Q&A: interests tracked,
// (pillars ∥ classics) gathered, history-grounded LLM call, freemium
// split, blurred premium with an unlock chip.
func (o *Orchestrator) handleSajuQuestion(ctx context.Context, in Inbound, text string, profile *models.Profile, r Responder) error {
	cats := intent.ClassifyInterests(text)
	if err := o.store.TrackInterest(ctx, in.Platform, in.UserID, cats, o.now()); err != nil {
		log.Warn().Err(err).Str("user", in.UserID).Msg("interest tracking failed")
	}

	if o.chat == nil {
		return r.Send(ctx, platform.Reply{Text: llmDisabledText})
	}

	tone := prompt.DetectTone(text)
	return o.runBilled(ctx, in, profile, r, tone, text, func(ctx context.Context) (platform.Reply, error) {
		var (
			chart  prompt.ChartContext
			chunks []models.ClassicsChunk
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			chart, err = o.chartFor(gctx, profile.Birth)
			return err
		})
		g.Go(func() error {
			// Retrieval degrades to no grounding on its own; never fails
			// the turn.
			chunks = o.classics.Retrieve(gctx, text)
			return nil
		})
		if err := g.Wait(); err != nil {
			return platform.Reply{}, err
		}

		turns, err := o.store.RecentTurns(ctx, in.Platform, in.UserID, db.HistoryCap)
		if err != nil {
			return platform.Reply{}, fmt.Errorf("load history: %w", err)
		}
		history := make([]llm.Message, 0, len(turns))
		for _, t := range turns {
			history = append(history, llm.Message{Role: string(t.Role), Content: t.Content})
		}

		resp, err := o.chat.Complete(ctx, o.prompts.General(tone, text, chart, history, chunks))
		if err != nil {
			return platform.Reply{}, err
		}
		corrected := prompt.CorrectDayPillar(resp.Content, chart.Pillars.Day)

		o.persistTurns(ctx, in, text, corrected)
		return o.shapeFreemium(corrected, cats[0]), nil
	})
}

// stageCompatibility stores the original question and asks for the
// partner's birth details.
func (o *Orchestrator) stageCompatibility(ctx context.Context, in Inbound, text string, r Responder) error {
	err := o.pending.Stage(ctx, in.Platform, in.UserID, models.PendingCompatibility,
		models.CompatibilityPayload{Question: text}, pending.DefaultTTL)
	if err != nil {
		return r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}
	return r.Send(ctx, platform.Reply{Text: askPartnerText})
}

// handlePartnerBirth consumes the compatibility slot once the partner's
// tuple parses; a bad parse re-prompts and leaves the slot alone.
func (o *Orchestrator) handlePartnerBirth(ctx context.Context, in Inbound, text string, profile *models.Profile, slot *models.PendingAction, r Responder) error {
	partnerBirth, ok := intent.ParseBirth(text)
	if !ok || partnerBirth.Validate() != nil {
		return r.Send(ctx, platform.Reply{Text: partnerRetryText})
	}

	question := ""
	if payload, err := slot.Compatibility(); err == nil {
		question = payload.Question
	}
	if _, err := o.pending.Consume(ctx, in.Platform, in.UserID, models.PendingCompatibility); err != nil {
		log.Warn().Err(err).Str("user", in.UserID).Msg("pending consume failed")
	}

	tone := prompt.DetectTone(text)
	return o.runBilled(ctx, in, profile, r, tone, question, func(ctx context.Context) (platform.Reply, error) {
		mine, err := o.chartFor(ctx, profile.Birth)
		if err != nil {
			return platform.Reply{}, err
		}
		partner, err := o.chartFor(ctx, partnerBirth)
		if err != nil {
			return platform.Reply{}, err
		}

		result := fortune.Compatibility(mine.Pillars, partner.Pillars, o.now())
		header := fmt.Sprintf("💞 궁합 명식\n나: %s\n상대: %s\n총점 %d점 (%s) · 합 %d 충 %d",
			mine.Pillars.Hangul(), partner.Pillars.Hangul(),
			result.Overall, result.Grade, result.Combines, result.Clashes)

		if o.chat == nil {
			return platform.Reply{Text: header + "\n\n" + llmDisabledText}, nil
		}

		resp, err := o.chat.Complete(ctx, o.prompts.Compatibility(tone, question, mine, partner, result))
		if err != nil {
			return platform.Reply{}, err
		}
		corrected := prompt.CorrectDayPillar(resp.Content, mine.Pillars.Day)

		o.persistTurns(ctx, in, text, corrected)
		reply := o.shapeFreemium(corrected, models.InterestLove)
		reply.Text = header + "\n\n" + reply.Text
		return reply, nil
	})
}

// handleWealth runs the wealth deep-dive.
func (o *Orchestrator) handleWealth(ctx context.Context, in Inbound, text string, profile *models.Profile, r Responder) error {
	if err := o.store.TrackInterest(ctx, in.Platform, in.UserID, []models.InterestCategory{models.InterestWealth}, o.now()); err != nil {
		log.Warn().Err(err).Str("user", in.UserID).Msg("interest tracking failed")
	}

	tone := prompt.DetectTone(text)
	return o.runBilled(ctx, in, profile, r, tone, text, func(ctx context.Context) (platform.Reply, error) {
		chart, err := o.chartFor(ctx, profile.Birth)
		if err != nil {
			return platform.Reply{}, err
		}

		result := fortune.Wealth(chart.Pillars, o.now().Year())
		header := fmt.Sprintf("💰 재물운 분석 · 총점 %d점 (%s)", result.Overall, result.Grade)

		if o.chat == nil {
			return platform.Reply{Text: header + "\n\n" + llmDisabledText}, nil
		}

		resp, err := o.chat.Complete(ctx, o.prompts.Wealth(tone, text, chart, result))
		if err != nil {
			return platform.Reply{}, err
		}
		corrected := prompt.CorrectDayPillar(resp.Content, chart.Pillars.Day)

		o.persistTurns(ctx, in, text, corrected)
		reply := o.shapeFreemium(corrected, models.InterestWealth)
		reply.Text = header + "\n\n" + reply.Text
		return reply, nil
	})
}

// handleDatePick returns the deterministic scored-day list. No LLM, no
// billing.
func (o *Orchestrator) handleDatePick(ctx context.Context, in Inbound, text string, profile *models.Profile, r Responder) error {
	pillars, err := o.manse.Resolve(ctx, profile.Birth)
	if err != nil {
		return r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}

	event := fortune.EventType(intent.DatePickEvent(text))
	days := fortune.PickDates(pillars, event, o.now(), 14)
	if len(days) > 5 {
		days = days[:5]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s하기 좋은 날 TOP %d (앞으로 2주)\n", event, len(days))
	for i, d := range days {
		fmt.Fprintf(&sb, "%d. %s (%s일) — %d점 · %s\n", i+1, d.Date, d.Pillar.Hangul(), d.Score, d.Grade)
	}
	sb.WriteString("\n구체적인 일정 상담이 필요하면 편하게 물어봐 주세요!")
	return r.Send(ctx, platform.Reply{Text: sb.String()})
}

// handleDailyFortune sends the free half of today's fortune with the
// unlock chip for the detail numbers. Deterministic, unbilled.
func (o *Orchestrator) handleDailyFortune(ctx context.Context, in Inbound, profile *models.Profile, r Responder) error {
	if err := o.store.TrackInterest(ctx, in.Platform, in.UserID, []models.InterestCategory{models.InterestFortune}, o.now()); err != nil {
		log.Warn().Err(err).Str("user", in.UserID).Msg("interest tracking failed")
	}

	pillars, err := o.manse.Resolve(ctx, profile.Birth)
	if err != nil {
		return r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}

	daily := fortune.Daily(pillars, o.now())
	return r.Send(ctx, platform.Reply{
		Text:    renderDailyFree(daily),
		Actions: []platform.Action{{Label: "🔓 상세 운세 보기", Payload: platform.ActionDailyMore}},
	})
}

// persistTurns appends the user question and the full tagged assistant
// answer. Only successful turns reach here; storage failures are logged
// and the reply still goes out.
func (o *Orchestrator) persistTurns(ctx context.Context, in Inbound, question, answer string) {
	now := o.now()
	for _, turn := range []*models.ConversationTurn{
		{Platform: in.Platform, UserID: in.UserID, Role: models.RoleUser, Content: question, CreatedAt: now},
		{Platform: in.Platform, UserID: in.UserID, Role: models.RoleAssistant, Content: answer, CreatedAt: now},
	} {
		if err := o.store.AppendTurn(ctx, turn); err != nil {
			log.Warn().Err(err).Str("user", in.UserID).Msg("history append failed")
		}
	}
}

// shapeFreemium converts a tagged LLM answer into the display reply: the
// free half, then the category teaser above the blurred premium half
// with the unlock chip.
func (o *Orchestrator) shapeFreemium(full string, category models.InterestCategory) platform.Reply {
	fr := prompt.ParseFreemium(full)
	reply := platform.Reply{Text: fr.FreeText}
	if fr.HasPremium {
		reply.Text += "\n\n" + prompt.Teaser(category) + "\n" + prompt.Blur(fr.PremiumText)
		reply.Actions = []platform.Action{{Label: "🔓 프리미엄 풀이 보기", Payload: platform.ActionUnlock}}
	}
	return reply
}

func renderDailyFree(d fortune.DailyResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🌅 %s 오늘의 운세\n", d.Date)
	fmt.Fprintf(&sb, "오늘의 일진: %s · %s의 날\n", d.DayPillar.Hangul(), d.Category)
	fmt.Fprintf(&sb, "총운 %d점 (%s)\n\n", d.Overall, d.Grade)
	fmt.Fprintf(&sb, "🍀 색 %s / 방향 %s / 숫자 %d\n", d.Lucky.Color, d.Lucky.Direction, d.Lucky.Number)
	fmt.Fprintf(&sb, "🍀 음식 %s / 시간 %s\n\n", d.Lucky.Food, d.Lucky.Time)
	sb.WriteString("연애·금전·일·건강 상세 점수는 잠금을 풀면 볼 수 있어요 🔒")
	return sb.String()
}

func renderDailyFull(d fortune.DailyResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🌅 %s 오늘의 상세 운세\n", d.Date)
	fmt.Fprintf(&sb, "오늘의 일진: %s · %s의 날\n", d.DayPillar.Hangul(), d.Category)
	fmt.Fprintf(&sb, "총운 %d점 (%s)\n\n", d.Overall, d.Grade)
	fmt.Fprintf(&sb, "💗 연애 %d점\n💰 금전 %d점\n💼 일 %d점\n🏃 건강 %d점\n\n", d.Love, d.Money, d.Work, d.Health)
	fmt.Fprintf(&sb, "🍀 색 %s / 방향 %s / 숫자 %d / 음식 %s / 시간 %s",
		d.Lucky.Color, d.Lucky.Direction, d.Lucky.Number, d.Lucky.Food, d.Lucky.Time)
	return sb.String()
}
