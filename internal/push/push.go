// Package push runs the 08:00 KST daily fan-out: pick everyone active
// in the last week, write each a personal morning fortune and deliver
// it with bounded pacing, retries and blocked-user deactivation.
package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/internal/db"
	"github.com/haneul-labs/saju-engine/internal/fortune"
	"github.com/haneul-labs/saju-engine/internal/kst"
	"github.com/haneul-labs/saju-engine/internal/llm"
	"github.com/haneul-labs/saju-engine/internal/manse"
	"github.com/haneul-labs/saju-engine/internal/metrics"
	"github.com/haneul-labs/saju-engine/internal/platform"
	"github.com/haneul-labs/saju-engine/internal/prompt"
	"github.com/haneul-labs/saju-engine/internal/saju"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// Sender delivers one push message on a chat platform.
type Sender interface {
	Supports(p models.Platform) bool
	Send(ctx context.Context, p models.Platform, userID, text string, actions []platform.Action) error
}

// Events receives fan-out progress for the ops stream. Optional.
type Events interface {
	Broadcast(models.OpsEvent)
}

const (
	// eligibilityWindow bounds how stale a profile may be and still
	// receive the morning push.
	eligibilityWindow = 7 * 24 * time.Hour
	// interUserDelay is the best-effort pacing between users.
	interUserDelay = 50 * time.Millisecond

	maxRetries = 2
	retryDelay = 500 * time.Millisecond
)

// weekdayCategories is the base category per KST weekday, used when a
// user has no tracked interests yet. Index is time.Weekday.
var weekdayCategories = [7]models.InterestCategory{
	models.InterestFortune, // Sunday
	models.InterestCareer,
	models.InterestWealth,
	models.InterestStudy,
	models.InterestHealth,
	models.InterestLove,
	models.InterestFamily,
}

// Job is one configured fan-out run.
type Job struct {
	store   db.Store
	chat    llm.ChatCompleter
	manse   *manse.Resolver
	prompts *prompt.Builder
	sender  Sender
	events  Events
	now     func() time.Time

	pacer *rate.Limiter

	// Shrunk in tests.
	retryDelay time.Duration
}

// NewJob wires a fan-out. chat may be nil; every message then uses the
// per-category fallback template.
func NewJob(store db.Store, chat llm.ChatCompleter, resolver *manse.Resolver, sender Sender, events Events, now func() time.Time) *Job {
	if now == nil {
		now = kst.Now
	}
	return &Job{
		store:      store,
		chat:       chat,
		manse:      resolver,
		prompts:    prompt.NewBuilder(now),
		sender:     sender,
		events:     events,
		now:        now,
		pacer:      rate.NewLimiter(rate.Every(interUserDelay), 1),
		retryDelay: retryDelay,
	}
}

func (j *Job) broadcast(eventType, detail string) {
	if j.events == nil {
		return
	}
	j.events.Broadcast(models.OpsEvent{Type: eventType, Detail: detail, At: j.now()})
}

// Run executes the fan-out and returns the aggregate counts. Per-user
// failures never abort the run; only profile selection can.
func (j *Job) Run(ctx context.Context) (models.PushSummary, error) {
	now := j.now()
	profiles, err := j.store.ActiveProfilesSince(ctx, now.Add(-eligibilityWindow))
	if err != nil {
		return models.PushSummary{}, fmt.Errorf("select push audience: %w", err)
	}

	var summary models.PushSummary
	var mu sync.Mutex
	var wg sync.WaitGroup

	j.broadcast(models.OpsPushStarted, fmt.Sprintf("audience=%d", len(profiles)))
	log.Info().Int("audience", len(profiles)).Msg("daily push fan-out started")

	for i := range profiles {
		p := profiles[i]
		if !j.sender.Supports(p.Platform) {
			continue
		}
		if err := j.pacer.Wait(ctx); err != nil {
			break
		}

		mu.Lock()
		summary.Total++
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			status := j.pushOne(ctx, &p)

			metrics.PushOutcomes.WithLabelValues(string(status)).Inc()
			mu.Lock()
			if status == models.PushFailed {
				summary.Failed++
			} else {
				summary.Success++
			}
			done := summary.Success + summary.Failed
			mu.Unlock()
			if done%50 == 0 {
				j.broadcast(models.OpsPushProgress, fmt.Sprintf("done=%d", done))
			}
		}()
	}
	wg.Wait()

	j.broadcast(models.OpsPushDone,
		fmt.Sprintf("total=%d success=%d failed=%d", summary.Total, summary.Success, summary.Failed))
	log.Info().
		Int("total", summary.Total).
		Int("success", summary.Success).
		Int("failed", summary.Failed).
		Msg("daily push fan-out finished")
	return summary, nil
}

// pushOne composes, delivers, and logs one user's push.
func (j *Job) pushOne(ctx context.Context, p *models.Profile) models.PushStatus {
	category, text, err := j.compose(ctx, p)
	if err != nil {
		log.Warn().Err(err).
			Str("platform", string(p.Platform)).
			Str("user", p.UserID).
			Msg("push compose failed")
		j.logPush(ctx, p, category, "", models.PushFailed)
		return models.PushFailed
	}

	status := j.deliver(ctx, p, text)
	j.logPush(ctx, p, category, text, status)
	return status
}

// compose picks the user's categories and writes the message: LLM copy
// when it obeys the post-rules, the per-category template otherwise.
func (j *Job) compose(ctx context.Context, p *models.Profile) (models.InterestCategory, string, error) {
	categories := j.categoriesFor(ctx, p)
	primary := categories[0]

	pillars, err := j.manse.Resolve(ctx, p.Birth)
	if err != nil {
		return primary, "", fmt.Errorf("resolve pillars: %w", err)
	}
	now := j.now()
	daily := fortune.Daily(pillars, now)

	name := p.DisplayName
	if name == "" {
		name = "오늘의 주인공"
	}

	if j.chat != nil {
		chart := prompt.ChartContext{
			Pillars:  pillars,
			Strength: saju.EvaluateStrength(pillars),
			YearLuck: saju.EvaluateYearLuck(pillars, now.Year()),
		}
		resp, err := j.chat.Complete(ctx, j.prompts.DailyPush(name, chart, daily, categories))
		if err == nil {
			text := prompt.CorrectDayPillar(resp.Content, daily.DayPillar)
			if prompt.ValidPush(text, primary) {
				return primary, text, nil
			}
			log.Debug().Str("user", p.UserID).Msg("push copy broke post-rules, using fallback")
		} else {
			log.Warn().Err(err).Str("user", p.UserID).Msg("push completion failed, using fallback")
		}
	}
	return primary, prompt.PushFallback(primary, name, daily), nil
}

// categoriesFor returns the top-2 tracked interests, seeded with the
// weekday base category when the user never asked anything.
func (j *Job) categoriesFor(ctx context.Context, p *models.Profile) []models.InterestCategory {
	base := weekdayCategories[int(kst.In(j.now()).Weekday())]

	scores, err := j.store.InterestScores(ctx, p.Platform, p.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user", p.UserID).Msg("interest read failed")
	}
	if len(scores) == 0 {
		return []models.InterestCategory{base}
	}

	out := make([]models.InterestCategory, 0, 2)
	for _, s := range scores {
		out = append(out, s.Category)
		if len(out) == 2 {
			break
		}
	}
	if len(out) < 2 && out[0] != base {
		out = append(out, base)
	}
	return out
}

// deliver sends with up to two retries. A blocked-user error is final:
// the profile is deactivated and never retried.
func (j *Job) deliver(ctx context.Context, p *models.Profile, text string) models.PushStatus {
	actions := []platform.Action{
		{Label: "🔮 자세히 보기", Payload: platform.ActionPushOpen},
		{Label: "✨ 프리미엄 풀이", Payload: platform.ActionPushPremium},
	}

	for attempt := 0; ; attempt++ {
		err := j.sender.Send(ctx, p.Platform, p.UserID, text, actions)
		if err == nil {
			if attempt > 0 {
				return models.PushRetried
			}
			return models.PushSuccess
		}

		if apperr.Is(err, apperr.KindUserBlocked) {
			log.Info().
				Str("platform", string(p.Platform)).
				Str("user", p.UserID).
				Msg("user blocked the bot, deactivating profile")
			if derr := j.store.SetProfileActive(ctx, p.Platform, p.UserID, false); derr != nil {
				log.Warn().Err(derr).Str("user", p.UserID).Msg("profile deactivation failed")
			}
			return models.PushFailed
		}

		if attempt >= maxRetries {
			log.Warn().Err(err).
				Str("platform", string(p.Platform)).
				Str("user", p.UserID).
				Msg("push delivery gave up")
			return models.PushFailed
		}

		select {
		case <-time.After(j.retryDelay):
		case <-ctx.Done():
			return models.PushFailed
		}
	}
}

func (j *Job) logPush(ctx context.Context, p *models.Profile, category models.InterestCategory, text string, status models.PushStatus) {
	rec := &models.PushRecord{
		Platform: p.Platform,
		UserID:   p.UserID,
		Category: category,
		Message:  text,
		Status:   status,
		SentAt:   j.now(),
	}
	if err := j.store.AppendPushLog(ctx, rec); err != nil {
		log.Warn().Err(err).Str("user", p.UserID).Msg("push log append failed")
	}
}
