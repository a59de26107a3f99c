package orchestrator

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/haneul-labs/saju-engine/internal/intent"
	"github.com/haneul-labs/saju-engine/internal/pending"
	"github.com/haneul-labs/saju-engine/internal/platform"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// handleMeta resolves /start and the prefix-matched meta commands.
// Returns handled=false when the utterance is a normal message.
func (o *Orchestrator) handleMeta(ctx context.Context, in Inbound, text string, r Responder) (handled bool, label string, err error) {
	switch {
	case strings.HasPrefix(text, "/start"):
		return true, "start", o.handleStart(ctx, in, text, r)

	case text == "프로필" || text == "내 정보" || text == "/profile":
		return true, "profile_show", o.handleProfileShow(ctx, in, r)

	case text == "초기화" || text == "리셋" || text == "/reset":
		return true, "profile_reset", o.handleProfileReset(ctx, in, r)

	case text == "초대" || text == "초대코드" || text == "/invite":
		return true, "invite", o.handleInvite(ctx, in, r)

	case text == "해제" || text == "잠금해제" || text == "/unlock":
		return true, "unlock", o.handleUnlock(ctx, in, r)
	}
	return false, "", nil
}

// handleStart welcomes the user. A referral argument is staged as a
// pending action and consumed when the profile is created, not before.
func (o *Orchestrator) handleStart(ctx context.Context, in Inbound, text string, r Responder) error {
	if arg := strings.TrimSpace(strings.TrimPrefix(text, "/start")); strings.HasPrefix(arg, "ref_") {
		err := o.pending.Stage(ctx, in.Platform, in.UserID, models.PendingReferral,
			models.ReferralPayload{Code: arg}, pending.DefaultTTL)
		if err != nil {
			log.Warn().Err(err).Str("user", in.UserID).Msg("referral stage failed")
		}
	}
	return r.Send(ctx, platform.Reply{Text: welcomeText})
}

func (o *Orchestrator) handleProfileShow(ctx context.Context, in Inbound, r Responder) error {
	p, err := o.store.GetProfile(ctx, in.Platform, in.UserID)
	if err != nil {
		return r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}
	if p == nil {
		return r.Send(ctx, platform.Reply{Text: askBirthText})
	}

	pillars, err := o.manse.Resolve(ctx, p.Birth)
	line := "계산 중 문제가 있었어요"
	if err == nil {
		line = pillars.Hangul()
	}
	return r.Send(ctx, platform.Reply{Text: profileShowText(p, line)})
}

func (o *Orchestrator) handleProfileReset(ctx context.Context, in Inbound, r Responder) error {
	if err := o.store.DeleteProfile(ctx, in.Platform, in.UserID); err != nil {
		return r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}
	return r.Send(ctx, platform.Reply{Text: resetDoneText})
}

func (o *Orchestrator) handleInvite(ctx context.Context, in Inbound, r Responder) error {
	p, err := o.store.GetProfile(ctx, in.Platform, in.UserID)
	if err != nil {
		return r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}
	if p == nil {
		return r.Send(ctx, platform.Reply{Text: askBirthText})
	}

	if p.ReferralCode == "" {
		p.ReferralCode = newReferralCode()
		if err := o.store.UpsertProfile(ctx, p); err != nil {
			return r.Send(ctx, platform.Reply{Text: errorReply(err)})
		}
	}
	return r.Send(ctx, platform.Reply{Text: referralText(p.ReferralCode)})
}

// handleRegistration runs when no profile exists: parse the birth tuple,
// create the profile, settle any staged referral, then launch the first
// reading.
func (o *Orchestrator) handleRegistration(ctx context.Context, in Inbound, text string, r Responder) (string, error) {
	birth, ok := intent.ParseBirth(text)
	if !ok {
		// First contact without a parseable tuple gets the full ask, a
		// failed attempt gets the retry phrasing.
		if looksLikeBirthAttempt(text) {
			return "register", r.Send(ctx, platform.Reply{Text: birthRetryText})
		}
		return "register", r.Send(ctx, platform.Reply{Text: askBirthText})
	}
	if err := birth.Validate(); err != nil {
		return "register", r.Send(ctx, platform.Reply{Text: birthRetryText})
	}

	now := o.now()
	profile := &models.Profile{
		Platform:     in.Platform,
		UserID:       in.UserID,
		DisplayName:  in.DisplayName,
		Birth:        birth,
		IsActive:     true,
		ReferralCode: newReferralCode(),
		LastActiveAt: now,
		CreatedAt:    now,
	}
	if err := o.store.UpsertProfile(ctx, profile); err != nil {
		return "register", r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}

	o.settleReferral(ctx, in)

	return "first_reading", o.handleFirstReading(ctx, in, profile, r)
}

// settleReferral consumes a staged referral code and awards one free
// unlock to both sides. Failures only log; registration already
// succeeded.
func (o *Orchestrator) settleReferral(ctx context.Context, in Inbound) {
	slot, err := o.pending.Consume(ctx, in.Platform, in.UserID, models.PendingReferral)
	if err != nil || slot == nil {
		return
	}
	payload, err := slot.Referral()
	if err != nil {
		return
	}

	inviter, err := o.store.FindProfileByReferral(ctx, payload.Code)
	if err != nil || inviter == nil {
		log.Info().Str("code", payload.Code).Msg("referral code did not match a profile")
		return
	}
	// Self-referral earns nothing.
	if inviter.Platform == in.Platform && inviter.UserID == in.UserID {
		return
	}

	if err := o.store.AddFreeUnlocks(ctx, inviter.Platform, inviter.UserID, 1); err != nil {
		log.Warn().Err(err).Msg("inviter unlock grant failed")
	}
	if err := o.store.AddFreeUnlocks(ctx, in.Platform, in.UserID, 1); err != nil {
		log.Warn().Err(err).Msg("invitee unlock grant failed")
	}
	log.Info().Str("code", payload.Code).Str("invitee", in.UserID).Msg("referral settled")
}

// looksLikeBirthAttempt spots a message that includes digits or year
// markers and therefore probably tried to be a birth date.
func looksLikeBirthAttempt(text string) bool {
	if strings.ContainsAny(text, "0123456789") {
		return true
	}
	return strings.Contains(text, "년") || strings.Contains(text, "生")
}
