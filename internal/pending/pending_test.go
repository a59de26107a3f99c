package pending

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haneul-labs/saju-engine/pkg/models"
)

type memBackend struct {
	mu    sync.Mutex
	slots map[string]*models.PendingAction
}

func newMemBackend() *memBackend { return &memBackend{slots: map[string]*models.PendingAction{}} }

func key(p models.Platform, u string, k models.PendingKind) string {
	return string(p) + "|" + u + "|" + string(k)
}

func (b *memBackend) SetPending(_ context.Context, a *models.PendingAction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[key(a.Platform, a.UserID, a.Kind)] = a
	return nil
}

func (b *memBackend) GetPending(_ context.Context, p models.Platform, u string, k models.PendingKind) (*models.PendingAction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slots[key(p, u, k)], nil
}

func (b *memBackend) DeletePending(_ context.Context, p models.Platform, u string, k models.PendingKind) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.slots, key(p, u, k))
	return nil
}

func (b *memBackend) DeleteExpiredPending(_ context.Context, now time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for k, a := range b.slots {
		if a.Expired(now) {
			delete(b.slots, k)
			n++
		}
	}
	return n, nil
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestSingleSlotPerActionKind(t *testing.T) {
	now := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	m := NewManager(newMemBackend(), fixedClock(now))
	ctx := context.Background()

	require.NoError(t, m.Stage(ctx, models.PlatformTelegram, "u1", models.PendingCompatibility,
		models.CompatibilityPayload{Question: "first"}, 0))
	require.NoError(t, m.Stage(ctx, models.PlatformTelegram, "u1", models.PendingCompatibility,
		models.CompatibilityPayload{Question: "second"}, 0))

	a, err := m.Peek(ctx, models.PlatformTelegram, "u1", models.PendingCompatibility)
	require.NoError(t, err)
	require.NotNil(t, a)

	p, err := a.Compatibility()
	require.NoError(t, err)
	assert.Equal(t, "second", p.Question, "the later stage must replace the earlier slot")
}

func TestExpiredSlotIsInvisible(t *testing.T) {
	staged := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	clock := staged
	m := NewManager(newMemBackend(), func() time.Time { return clock })
	ctx := context.Background()

	require.NoError(t, m.Stage(ctx, models.PlatformKakao, "u1", models.PendingReferral,
		models.ReferralPayload{Code: "ref_ABC123"}, 0))

	clock = staged.Add(DefaultTTL + time.Second)
	a, err := m.Peek(ctx, models.PlatformKakao, "u1", models.PendingReferral)
	require.NoError(t, err)
	assert.Nil(t, a, "expired slot must not be returned")
}

func TestConsumeDeletes(t *testing.T) {
	now := time.Now()
	m := NewManager(newMemBackend(), fixedClock(now))
	ctx := context.Background()

	require.NoError(t, m.Stage(ctx, models.PlatformTelegram, "u1", models.PendingCompatibility,
		models.CompatibilityPayload{Question: "q"}, 0))

	a, err := m.Consume(ctx, models.PlatformTelegram, "u1", models.PendingCompatibility)
	require.NoError(t, err)
	require.NotNil(t, a)

	again, err := m.Consume(ctx, models.PlatformTelegram, "u1", models.PendingCompatibility)
	require.NoError(t, err)
	assert.Nil(t, again, "a consumed slot is gone")
}

func TestSweepCountsExpired(t *testing.T) {
	staged := time.Now()
	clock := staged
	m := NewManager(newMemBackend(), func() time.Time { return clock })
	ctx := context.Background()

	require.NoError(t, m.Stage(ctx, models.PlatformTelegram, "u1", models.PendingCompatibility, models.CompatibilityPayload{}, time.Minute))
	require.NoError(t, m.Stage(ctx, models.PlatformTelegram, "u2", models.PendingReferral, models.ReferralPayload{}, time.Hour))

	clock = staged.Add(2 * time.Minute)
	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	keep, err := m.Peek(ctx, models.PlatformTelegram, "u2", models.PendingReferral)
	require.NoError(t, err)
	assert.NotNil(t, keep)
}
