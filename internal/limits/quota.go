package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/internal/kst"
	"github.com/haneul-labs/saju-engine/internal/metrics"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// UsageStore reads and atomically bumps the per-KST-day request counter.
type UsageStore interface {
	DailyUsage(ctx context.Context, platform models.Platform, userID, day string) (int, error)
	IncrementDailyUsage(ctx context.Context, platform models.Platform, userID, day string) error
}

// BillingStore resolves the payment-side inputs of the tier.
type BillingStore interface {
	Subscription(ctx context.Context, platform models.Platform, userID string) (*models.Subscription, error)
	CreditBalance(ctx context.Context, platform models.Platform, userID string) (int, error)
}

// Quota is the persistent daily gate.
type Quota struct {
	usage   UsageStore
	billing BillingStore
}

// NewQuota wires the daily gate to its stores.
func NewQuota(usage UsageStore, billing BillingStore) *Quota {
	return &Quota{usage: usage, billing: billing}
}

// ResolveTier computes the effective entitlement, best grant wins:
// valid profile premium flag or premium subscription → premium, basic
// subscription or positive credit balance → basic, else free.
func ResolveTier(profile *models.Profile, sub *models.Subscription, credits int, now time.Time) models.Entitlement {
	ent := models.Entitlement{Tier: models.TierFree, Credits: credits}

	if profile != nil && profile.HasPremiumFlag(now) {
		ent.Tier = models.TierPremium
		ent.PremiumUntil = profile.PremiumUntil
		return ent
	}
	if sub != nil && sub.Active(now) {
		ent.Tier = sub.Tier
		if sub.Tier == models.TierPremium {
			ent.PremiumUntil = &sub.ExpiresAt
		}
		return ent
	}
	if credits > 0 {
		ent.Tier = models.TierBasic
	}
	return ent
}

// Entitlement resolves a user's current entitlement from stores. A nil
// billing store means free tier unless the profile flag says otherwise.
func (q *Quota) Entitlement(ctx context.Context, profile *models.Profile, now time.Time) (models.Entitlement, error) {
	var sub *models.Subscription
	credits := 0
	if q.billing != nil && profile != nil {
		var err error
		sub, err = q.billing.Subscription(ctx, profile.Platform, profile.UserID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return models.Entitlement{}, fmt.Errorf("resolve subscription: %w", err)
		}
		credits, err = q.billing.CreditBalance(ctx, profile.Platform, profile.UserID)
		if err != nil {
			return models.Entitlement{}, fmt.Errorf("resolve credits: %w", err)
		}
	}
	return ResolveTier(profile, sub, credits, now), nil
}

// Check rejects when today's usage has reached the tier limit. It does
// not increment; call RecordSuccess after the request completes.
func (q *Quota) Check(ctx context.Context, profile *models.Profile, now time.Time) (models.Entitlement, error) {
	ent, err := q.Entitlement(ctx, profile, now)
	if err != nil {
		return ent, err
	}

	count, err := q.usage.DailyUsage(ctx, profile.Platform, profile.UserID, kst.DayKey(now))
	if err != nil {
		return ent, fmt.Errorf("read daily usage: %w", err)
	}
	if count >= ent.Tier.DailyLimit() {
		metrics.ThrottleRejections.WithLabelValues("quota").Inc()
		return ent, apperr.Newf(apperr.KindQuotaExceeded, "daily limit %d reached for tier %s", ent.Tier.DailyLimit(), ent.Tier)
	}
	return ent, nil
}

// RecordSuccess bumps today's counter. Failed turns are never billed, so
// the orchestrator calls this only after a reply went out.
func (q *Quota) RecordSuccess(ctx context.Context, platform models.Platform, userID string, now time.Time) error {
	return q.usage.IncrementDailyUsage(ctx, platform, userID, kst.DayKey(now))
}
