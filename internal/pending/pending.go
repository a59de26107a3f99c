// Package pending manages the at-most-one outstanding follow-up a user
// may hold per action kind ("answer with your partner's birth info",
// "referral code waiting for a profile"). The durable store is the sole
// arbiter of what a user's next utterance means: the orchestrator always
// consults it before any intent classification.
package pending

import (
	"context"
	"time"

	"github.com/haneul-labs/saju-engine/pkg/models"
)

// DefaultTTL for a staged action.
const DefaultTTL = 10 * time.Minute

// Backend is the storage the manager drives. SetPending must behave as
// delete-then-insert on the (platform, user, kind) key; GetPending must
// never return an expired row.
type Backend interface {
	SetPending(ctx context.Context, a *models.PendingAction) error
	GetPending(ctx context.Context, platform models.Platform, userID string, kind models.PendingKind) (*models.PendingAction, error)
	DeletePending(ctx context.Context, platform models.Platform, userID string, kind models.PendingKind) error
	DeleteExpiredPending(ctx context.Context, now time.Time) (int, error)
}

// Manager is the typed facade over the backend.
type Manager struct {
	backend Backend
	now     func() time.Time
}

// NewManager builds a manager; a nil clock uses the wall clock.
func NewManager(backend Backend, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{backend: backend, now: now}
}

// Stage upserts the slot for (user, kind). A zero ttl gets the default.
func (m *Manager) Stage(ctx context.Context, platform models.Platform, userID string, kind models.PendingKind, payload any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	a, err := models.NewPendingAction(platform, userID, kind, payload, m.now(), ttl)
	if err != nil {
		return err
	}
	return m.backend.SetPending(ctx, a)
}

// Peek returns the live slot for (user, kind), nil when absent or
// expired. The slot stays in place.
func (m *Manager) Peek(ctx context.Context, platform models.Platform, userID string, kind models.PendingKind) (*models.PendingAction, error) {
	a, err := m.backend.GetPending(ctx, platform, userID, kind)
	if err != nil {
		return nil, err
	}
	if a == nil || a.Expired(m.now()) {
		return nil, nil
	}
	return a, nil
}

// Consume returns the live slot and deletes it in the same call, nil
// when there was nothing to consume.
func (m *Manager) Consume(ctx context.Context, platform models.Platform, userID string, kind models.PendingKind) (*models.PendingAction, error) {
	a, err := m.Peek(ctx, platform, userID, kind)
	if err != nil || a == nil {
		return a, err
	}
	if err := m.backend.DeletePending(ctx, platform, userID, kind); err != nil {
		return nil, err
	}
	return a, nil
}

// Drop removes the slot regardless of expiry.
func (m *Manager) Drop(ctx context.Context, platform models.Platform, userID string, kind models.PendingKind) error {
	return m.backend.DeletePending(ctx, platform, userID, kind)
}

// Sweep deletes every expired slot and reports how many went.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	return m.backend.DeleteExpiredPending(ctx, m.now())
}
