// Package db provides the persistence layer: a Postgres store over pgx
// with the schema embedded at build time, and an in-memory store with
// the same behavior for development without DATABASE_URL. Both satisfy
// Store; callers never know which one they hold.
package db

import (
	"context"
	"time"

	"github.com/haneul-labs/saju-engine/internal/saju"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// HistoryCap is the per-user rolling conversation history length. Older
// turns are pruned in the same transaction that appends a new one.
const HistoryCap = 10

// Store is the full persistence surface. Lookups that find nothing
// return (nil, nil); only real failures error.
type Store interface {
	// Profiles. The (platform, user id) pair is the unique key.
	GetProfile(ctx context.Context, platform models.Platform, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p *models.Profile) error
	DeleteProfile(ctx context.Context, platform models.Platform, userID string) error
	SetProfileActive(ctx context.Context, platform models.Platform, userID string, active bool) error
	TouchLastActive(ctx context.Context, platform models.Platform, userID string, at time.Time) error
	ActiveProfilesSince(ctx context.Context, since time.Time) ([]models.Profile, error)
	FindProfileByReferral(ctx context.Context, code string) (*models.Profile, error)
	AddFreeUnlocks(ctx context.Context, platform models.Platform, userID string, delta int) error
	SpendFreeUnlock(ctx context.Context, platform models.Platform, userID string) (bool, error)
	SetPremiumUntil(ctx context.Context, platform models.Platform, userID string, until time.Time) error

	// Rolling conversation history, capped at HistoryCap per user.
	AppendTurn(ctx context.Context, turn *models.ConversationTurn) error
	RecentTurns(ctx context.Context, platform models.Platform, userID string, n int) ([]models.ConversationTurn, error)

	// Pending actions, one slot per (user, kind).
	SetPending(ctx context.Context, a *models.PendingAction) error
	GetPending(ctx context.Context, platform models.Platform, userID string, kind models.PendingKind) (*models.PendingAction, error)
	DeletePending(ctx context.Context, platform models.Platform, userID string, kind models.PendingKind) error
	DeleteExpiredPending(ctx context.Context, now time.Time) (int, error)

	// Daily usage counters, keyed by KST day.
	DailyUsage(ctx context.Context, platform models.Platform, userID, day string) (int, error)
	IncrementDailyUsage(ctx context.Context, platform models.Platform, userID, day string) error

	// Billing: written by the payment webhook, read by entitlements.
	Subscription(ctx context.Context, platform models.Platform, userID string) (*models.Subscription, error)
	CreditBalance(ctx context.Context, platform models.Platform, userID string) (int, error)
	SaveOrder(ctx context.Context, o *models.Order) error
	SaveSubscription(ctx context.Context, s *models.Subscription) error
	AddCredits(ctx context.Context, platform models.Platform, userID string, delta int, reason string) error

	// Interest tracking with recency-weighted scores normalized to 100.
	TrackInterest(ctx context.Context, platform models.Platform, userID string, categories []models.InterestCategory, now time.Time) error
	InterestScores(ctx context.Context, platform models.Platform, userID string) ([]models.InterestScore, error)
	DecayInterests(ctx context.Context, olderThan time.Time, now time.Time) (int, error)

	// Push log.
	AppendPushLog(ctx context.Context, rec *models.PushRecord) error
	MarkPushOpened(ctx context.Context, platform models.Platform, userID string, converted bool) error

	// Immutable pillar cache keyed by birth tuple.
	GetPillars(ctx context.Context, key string) (*saju.Pillars, error)
	PutPillars(ctx context.Context, key string, p saju.Pillars) error

	// Classics corpus similarity search.
	SearchChunks(ctx context.Context, source string, embedding []float32, k int, minScore float64) ([]models.ClassicsChunk, error)
	InsertChunk(ctx context.Context, c *models.ClassicsChunk) error

	Close()
}

// interestDecayFactor shrinks weighted counts whose last ask is older
// than the decay window.
const interestDecayFactor = 0.7

// recomputeScores normalizes a user's interest rows to integer
// percentages summing to 100, largest remainders taking the leftover so
// rounding never pushes the total past 100.
func recomputeScores(rows []models.InterestScore) {
	var total float64
	for _, r := range rows {
		total += r.WeightedCount
	}
	if total <= 0 {
		for i := range rows {
			rows[i].Score = 0
		}
		return
	}

	assigned := 0
	remainders := make([]float64, len(rows))
	for i := range rows {
		exact := rows[i].WeightedCount / total * 100
		floor := int(exact)
		rows[i].Score = float64(floor)
		remainders[i] = exact - float64(floor)
		assigned += floor
	}
	for assigned < 100 {
		best := 0
		for i := 1; i < len(remainders); i++ {
			if remainders[i] > remainders[best] {
				best = i
			}
		}
		rows[best].Score++
		remainders[best] = -1
		assigned++
	}
}
