package orchestrator

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/haneul-labs/saju-engine/internal/fortune"
	"github.com/haneul-labs/saju-engine/internal/platform"
	"github.com/haneul-labs/saju-engine/internal/prompt"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// handleCallback routes an inline-button tap. The adapter has already
// acknowledged the tap on the platform side.
func (o *Orchestrator) handleCallback(ctx context.Context, in Inbound, r Responder) error {
	payload := in.Callback.Payload
	switch {
	case payload == platform.ActionUnlock || strings.HasPrefix(payload, platform.ActionUnlock+":"):
		return o.handleUnlock(ctx, in, r)
	case payload == platform.ActionDailyMore:
		return o.handleDailyMore(ctx, in, r)
	case payload == platform.ActionPushOpen:
		return o.handlePushOpen(ctx, in, r, false)
	case payload == platform.ActionPushPremium:
		return o.handlePushOpen(ctx, in, r, true)
	default:
		log.Info().Str("payload", payload).Msg("unknown callback payload")
		return r.Send(ctx, platform.Reply{Text: nothingToUnlockText})
	}
}

// entitledOrSpend reports whether the user may see premium content right
// now: tier basic or better passes outright, otherwise one free unlock
// is spent. The second return says an unlock was consumed.
func (o *Orchestrator) entitledOrSpend(ctx context.Context, profile *models.Profile) (bool, bool) {
	ent, err := o.quota.Entitlement(ctx, profile, o.now())
	if err != nil {
		log.Warn().Err(err).Str("user", profile.UserID).Msg("entitlement lookup failed")
	} else if ent.Tier != models.TierFree {
		return true, false
	}

	spent, err := o.store.SpendFreeUnlock(ctx, profile.Platform, profile.UserID)
	if err != nil {
		log.Warn().Err(err).Str("user", profile.UserID).Msg("free-unlock spend failed")
		return false, false
	}
	return spent, spent
}

// handleUnlock reveals the premium half of the user's latest analysis.
// Reached by the inline chip and by the 해제 meta command.
func (o *Orchestrator) handleUnlock(ctx context.Context, in Inbound, r Responder) error {
	profile, err := o.store.GetProfile(ctx, in.Platform, in.UserID)
	if err != nil {
		return r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}
	if profile == nil {
		return r.Send(ctx, platform.Reply{Text: askBirthText})
	}

	premium := o.latestPremiumText(ctx, in)
	if premium == "" {
		return r.Send(ctx, platform.Reply{Text: nothingToUnlockText})
	}

	ok, spent := o.entitledOrSpend(ctx, profile)
	if !ok {
		return r.Send(ctx, platform.Reply{Text: unlockUpsellText})
	}

	text := "🔓 프리미엄 풀이\n\n" + premium
	if spent {
		text = unlockSpentText + "\n\n" + text
	}
	return r.Send(ctx, platform.Reply{Text: text})
}

// latestPremiumText walks history backwards for the newest assistant
// turn that carries a premium section.
func (o *Orchestrator) latestPremiumText(ctx context.Context, in Inbound) string {
	turns, err := o.store.RecentTurns(ctx, in.Platform, in.UserID, 0)
	if err != nil {
		log.Warn().Err(err).Str("user", in.UserID).Msg("history read failed")
		return ""
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != models.RoleAssistant {
			continue
		}
		if fr := prompt.ParseFreemium(turns[i].Content); fr.HasPremium {
			return fr.PremiumText
		}
	}
	return ""
}

// handleDailyMore reveals the full daily-fortune numbers.
func (o *Orchestrator) handleDailyMore(ctx context.Context, in Inbound, r Responder) error {
	profile, err := o.store.GetProfile(ctx, in.Platform, in.UserID)
	if err != nil {
		return r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}
	if profile == nil {
		return r.Send(ctx, platform.Reply{Text: askBirthText})
	}

	ok, spent := o.entitledOrSpend(ctx, profile)
	if !ok {
		return r.Send(ctx, platform.Reply{Text: unlockUpsellText})
	}

	pillars, err := o.manse.Resolve(ctx, profile.Birth)
	if err != nil {
		return r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}

	text := renderDailyFull(fortune.Daily(pillars, o.now()))
	if spent {
		text = unlockSpentText + "\n\n" + text
	}
	return r.Send(ctx, platform.Reply{Text: text})
}

// handlePushOpen records push engagement and serves today's fortune; the
// premium variant additionally marks the conversion intent.
func (o *Orchestrator) handlePushOpen(ctx context.Context, in Inbound, r Responder, premium bool) error {
	if err := o.store.MarkPushOpened(ctx, in.Platform, in.UserID, premium); err != nil {
		log.Warn().Err(err).Str("user", in.UserID).Msg("push-open mark failed")
	}

	profile, err := o.store.GetProfile(ctx, in.Platform, in.UserID)
	if err != nil || profile == nil {
		return r.Send(ctx, platform.Reply{Text: askBirthText})
	}
	pillars, err := o.manse.Resolve(ctx, profile.Birth)
	if err != nil {
		return r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}
	daily := fortune.Daily(pillars, o.now())

	if !premium {
		return r.Send(ctx, platform.Reply{
			Text:    renderDailyFree(daily),
			Actions: []platform.Action{{Label: "🔓 상세 운세 보기", Payload: platform.ActionDailyMore}},
		})
	}

	ok, spent := o.entitledOrSpend(ctx, profile)
	if !ok {
		return r.Send(ctx, platform.Reply{Text: unlockUpsellText})
	}
	text := renderDailyFull(daily)
	if spent {
		text = unlockSpentText + "\n\n" + text
	}
	return r.Send(ctx, platform.Reply{Text: text})
}
