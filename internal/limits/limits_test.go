package limits

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

func TestThrottleRejectsWithinWindow(t *testing.T) {
	th := NewThrottle()
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)

	require.NoError(t, th.Allow(models.PlatformTelegram, "u1", now))

	err := th.Allow(models.PlatformTelegram, "u1", now.Add(500*time.Millisecond))
	require.Error(t, err)
	assert.Equal(t, apperr.KindRateLimited, apperr.KindOf(err))

	retry := apperr.RetryAfterOf(err)
	assert.GreaterOrEqual(t, retry, 1*time.Second)
	assert.LessOrEqual(t, retry, 3*time.Second)

	// Waiting out retryAfter admits the next request.
	assert.NoError(t, th.Allow(models.PlatformTelegram, "u1", now.Add(500*time.Millisecond).Add(retry)))
}

func TestThrottleIsPerUser(t *testing.T) {
	th := NewThrottle()
	now := time.Now()
	require.NoError(t, th.Allow(models.PlatformTelegram, "u1", now))
	assert.NoError(t, th.Allow(models.PlatformTelegram, "u2", now))
	assert.NoError(t, th.Allow(models.PlatformKakao, "u1", now), "same id on another platform is a different user")
}

func TestThrottleSweepBoundsMap(t *testing.T) {
	th := NewThrottle()
	base := time.Now()
	for i := 0; i < throttleCapacity; i++ {
		require.NoError(t, th.Allow(models.PlatformTelegram, string(rune('a'+i%26))+string(rune('0'+i/26)), base.Add(time.Duration(i)*time.Millisecond)))
	}
	// The next insert triggers the sweep; stale entries are gone.
	require.NoError(t, th.Allow(models.PlatformTelegram, "fresh", base.Add(time.Hour)))
	assert.LessOrEqual(t, th.Size(), throttleCapacity)
}

type fakeUsage struct {
	counts map[string]int
}

func (f *fakeUsage) key(p models.Platform, u, d string) string { return string(p) + "|" + u + "|" + d }

func (f *fakeUsage) DailyUsage(_ context.Context, p models.Platform, u, d string) (int, error) {
	return f.counts[f.key(p, u, d)], nil
}

func (f *fakeUsage) IncrementDailyUsage(_ context.Context, p models.Platform, u, d string) error {
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[f.key(p, u, d)]++
	return nil
}

type fakeBilling struct {
	sub     *models.Subscription
	credits int
}

func (f *fakeBilling) Subscription(context.Context, models.Platform, string) (*models.Subscription, error) {
	return f.sub, nil
}

func (f *fakeBilling) CreditBalance(context.Context, models.Platform, string) (int, error) {
	return f.credits, nil
}

func profileFor(t *testing.T) *models.Profile {
	t.Helper()
	return &models.Profile{Platform: models.PlatformTelegram, UserID: "u1", IsActive: true}
}

func TestQuotaFreeTierLimit(t *testing.T) {
	usage := &fakeUsage{}
	q := NewQuota(usage, &fakeBilling{})
	now := time.Now()
	p := profileFor(t)

	for i := 0; i < models.TierFree.DailyLimit(); i++ {
		_, err := q.Check(context.Background(), p, now)
		require.NoError(t, err)
		require.NoError(t, q.RecordSuccess(context.Background(), p.Platform, p.UserID, now))
	}

	_, err := q.Check(context.Background(), p, now)
	require.Error(t, err)
	assert.Equal(t, apperr.KindQuotaExceeded, apperr.KindOf(err))
}

func TestQuotaResetsAcrossKSTDays(t *testing.T) {
	usage := &fakeUsage{}
	q := NewQuota(usage, &fakeBilling{})
	p := profileFor(t)

	// 23:30 KST is 14:30 UTC; 30 minutes later the KST day rolls over.
	night := time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.RecordSuccess(context.Background(), p.Platform, p.UserID, night))
	}
	_, err := q.Check(context.Background(), p, night)
	require.Error(t, err)

	_, err = q.Check(context.Background(), p, night.Add(30*time.Minute))
	assert.NoError(t, err, "quota must reset at KST midnight")
}

func TestResolveTierPrecedence(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name    string
		profile *models.Profile
		sub     *models.Subscription
		credits int
		want    models.Tier
	}{
		{"default free", &models.Profile{}, nil, 0, models.TierFree},
		{"profile premium flag wins", &models.Profile{PremiumUntil: &future}, nil, 0, models.TierPremium},
		{"expired premium flag ignored", &models.Profile{PremiumUntil: &past}, nil, 0, models.TierFree},
		{"premium subscription", &models.Profile{}, &models.Subscription{Tier: models.TierPremium, ExpiresAt: future}, 0, models.TierPremium},
		{"basic subscription", &models.Profile{}, &models.Subscription{Tier: models.TierBasic, ExpiresAt: future}, 0, models.TierBasic},
		{"expired subscription with credits", &models.Profile{}, &models.Subscription{Tier: models.TierPremium, ExpiresAt: past}, 5, models.TierBasic},
		{"credits alone give basic", &models.Profile{}, nil, 1, models.TierBasic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTier(tt.profile, tt.sub, tt.credits, now)
			assert.Equal(t, tt.want, got.Tier)
		})
	}
}
