package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haneul-labs/saju-engine/pkg/models"
)

func testProfile(userID string) *models.Profile {
	return &models.Profile{
		Platform: models.PlatformTelegram,
		UserID:   userID,
		Birth: models.BirthInput{
			Year: 1993, Month: 7, Day: 15, Hour: 14, Minute: 30,
			Gender: models.GenderFemale,
		},
		IsActive:     true,
		ReferralCode: "ref_" + userID,
		LastActiveAt: time.Now(),
		CreatedAt:    time.Now(),
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	missing, err := s.GetProfile(ctx, models.PlatformTelegram, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing, "absent profile must be (nil, nil), not an error")

	p := testProfile("u1")
	require.NoError(t, s.UpsertProfile(ctx, p))

	got, err := s.GetProfile(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.Birth, got.Birth)

	// Kakao identity with the same raw id is a different user.
	other, err := s.GetProfile(ctx, models.PlatformKakao, "u1")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestFindProfileByReferral(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.UpsertProfile(ctx, testProfile("u1")))

	got, err := s.FindProfileByReferral(ctx, "ref_u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)

	none, err := s.FindProfileByReferral(ctx, "ref_unknown")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSpendFreeUnlock(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := testProfile("u1")
	p.FreeUnlocks = 1
	require.NoError(t, s.UpsertProfile(ctx, p))

	ok, err := s.SpendFreeUnlock(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SpendFreeUnlock(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "a drained balance must not go negative")
}

func TestHistoryCappedAtTen(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < HistoryCap+5; i++ {
		require.NoError(t, s.AppendTurn(ctx, &models.ConversationTurn{
			Platform: models.PlatformTelegram,
			UserID:   "u1",
			Role:     models.RoleUser,
			Content:  fmt.Sprintf("msg %d", i),
		}))
	}

	turns, err := s.RecentTurns(ctx, models.PlatformTelegram, "u1", 0)
	require.NoError(t, err)
	require.Len(t, turns, HistoryCap)
	assert.Equal(t, "msg 5", turns[0].Content, "oldest turns are pruned first")
	assert.Equal(t, fmt.Sprintf("msg %d", HistoryCap+4), turns[len(turns)-1].Content)
}

func TestDailyUsageCounter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n, err := s.DailyUsage(ctx, models.PlatformKakao, "u1", "2026-08-26")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.IncrementDailyUsage(ctx, models.PlatformKakao, "u1", "2026-08-26"))
	require.NoError(t, s.IncrementDailyUsage(ctx, models.PlatformKakao, "u1", "2026-08-26"))

	n, err = s.DailyUsage(ctx, models.PlatformKakao, "u1", "2026-08-26")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A new KST day starts a fresh counter.
	n, err = s.DailyUsage(ctx, models.PlatformKakao, "u1", "2026-08-27")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInterestScoresSumToHundred(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	// Uneven weights that defeat naive rounding: 1x love, 1x career,
	// 1x health, 3x wealth.
	track := []struct {
		cats []models.InterestCategory
	}{
		{[]models.InterestCategory{models.InterestLove}},
		{[]models.InterestCategory{models.InterestCareer}},
		{[]models.InterestCategory{models.InterestHealth}},
		{[]models.InterestCategory{models.InterestWealth}},
		{[]models.InterestCategory{models.InterestWealth}},
		{[]models.InterestCategory{models.InterestWealth}},
	}
	for _, tr := range track {
		require.NoError(t, s.TrackInterest(ctx, models.PlatformTelegram, "u1", tr.cats, now))
	}

	scores, err := s.InterestScores(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	require.Len(t, scores, 4)

	var sum float64
	for _, r := range scores {
		sum += r.Score
	}
	assert.Equal(t, 100.0, sum, "normalized scores must sum to exactly 100")
	assert.Equal(t, models.InterestWealth, scores[0].Category, "heaviest category sorts first")
}

func TestDecayInterests(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	old := time.Now().Add(-10 * 24 * time.Hour)
	fresh := time.Now()

	require.NoError(t, s.TrackInterest(ctx, models.PlatformTelegram, "u1", []models.InterestCategory{models.InterestLove}, old))
	require.NoError(t, s.TrackInterest(ctx, models.PlatformTelegram, "u1", []models.InterestCategory{models.InterestWealth}, fresh))

	n, err := s.DecayInterests(ctx, time.Now().Add(-7*24*time.Hour), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the stale row decays")

	scores, err := s.InterestScores(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	require.Len(t, scores, 2)

	var love, wealth models.InterestScore
	for _, r := range scores {
		switch r.Category {
		case models.InterestLove:
			love = r
		case models.InterestWealth:
			wealth = r
		}
	}
	assert.InDelta(t, 1.4, love.WeightedCount, 1e-9)
	assert.Equal(t, 2.0, wealth.WeightedCount)
	assert.Equal(t, 100.0, love.Score+wealth.Score, "decay renormalizes to 100")
}

func TestPendingSingleSlotUpsert(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	first, err := models.NewPendingAction(models.PlatformTelegram, "u1",
		models.PendingCompatibility, models.CompatibilityPayload{Question: "first"}, now, 10*time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.SetPending(ctx, first))

	second, err := models.NewPendingAction(models.PlatformTelegram, "u1",
		models.PendingCompatibility, models.CompatibilityPayload{Question: "second"}, now, 10*time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.SetPending(ctx, second))

	got, err := s.GetPending(ctx, models.PlatformTelegram, "u1", models.PendingCompatibility)
	require.NoError(t, err)
	require.NotNil(t, got)
	payload, err := got.Compatibility()
	require.NoError(t, err)
	assert.Equal(t, "second", payload.Question)

	expired, err := s.DeleteExpiredPending(ctx, now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
}

func TestActiveProfilesSince(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	recent := testProfile("recent")
	recent.LastActiveAt = now.Add(-time.Hour)
	stale := testProfile("stale")
	stale.LastActiveAt = now.Add(-30 * 24 * time.Hour)
	blocked := testProfile("blocked")
	blocked.LastActiveAt = now.Add(-time.Hour)
	blocked.IsActive = false

	for _, p := range []*models.Profile{recent, stale, blocked} {
		require.NoError(t, s.UpsertProfile(ctx, p))
	}

	got, err := s.ActiveProfilesSince(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].UserID)
}

func TestBillingLedger(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.AddCredits(ctx, models.PlatformTelegram, "u1", 10, "credit_pack_10"))
	require.NoError(t, s.AddCredits(ctx, models.PlatformTelegram, "u1", -1, "main_analysis"))

	balance, err := s.CreditBalance(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	assert.Equal(t, 9, balance)

	sub := &models.Subscription{
		Platform:  models.PlatformTelegram,
		UserID:    "u1",
		Tier:      models.TierPremium,
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
	}
	require.NoError(t, s.SaveSubscription(ctx, sub))

	got, err := s.Subscription(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.TierPremium, got.Tier)
}

func TestClassicsSearchRanksByCosine(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	chunks := []*models.ClassicsChunk{
		{Source: "jpds", Section: "1", Content: "aligned", Embedding: []float32{1, 0, 0}},
		{Source: "jpds", Section: "2", Content: "partial", Embedding: []float32{0.7, 0.7, 0}},
		{Source: "jpds", Section: "3", Content: "orthogonal", Embedding: []float32{0, 0, 1}},
		{Source: "other", Section: "4", Content: "wrong source", Embedding: []float32{1, 0, 0}},
	}
	for _, c := range chunks {
		require.NoError(t, s.InsertChunk(ctx, c))
	}

	got, err := s.SearchChunks(ctx, "jpds", []float32{1, 0, 0}, 3, 0.3)
	require.NoError(t, err)
	require.Len(t, got, 2, "orthogonal chunk falls under the similarity floor")
	assert.Equal(t, "aligned", got[0].Content)
	assert.Equal(t, "partial", got[1].Content)
}

func TestMarkPushOpenedFlagsLatest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, s.AppendPushLog(ctx, &models.PushRecord{
			Platform: models.PlatformTelegram,
			UserID:   "u1",
			Category: models.InterestLove,
			Status:   models.PushSuccess,
			SentAt:   time.Now(),
		}))
	}
	require.NoError(t, s.MarkPushOpened(ctx, models.PlatformTelegram, "u1", true))

	recs := s.PushRecords()
	require.Len(t, recs, 2)
	assert.False(t, recs[0].Opened, "only the latest push is attributed")
	assert.True(t, recs[1].Opened)
	assert.True(t, recs[1].ConvertedToPremium)
}
