package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/haneul-labs/saju-engine/internal/classics"
	"github.com/haneul-labs/saju-engine/internal/saju"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// MemoryStore keeps everything in process. It exists so the service
// still answers webhooks without DATABASE_URL; state dies with the
// process and that is acceptable for development.
type MemoryStore struct {
	mu sync.Mutex

	profiles  map[string]*models.Profile
	turns     map[string][]models.ConversationTurn
	pending   map[string]*models.PendingAction
	usage     map[string]int
	subs      map[string]*models.Subscription
	credits   map[string]int
	orders    []models.Order
	interests map[string][]models.InterestScore
	pushLog   []models.PushRecord
	pillars   map[string]saju.Pillars
	chunks    []models.ClassicsChunk
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:  make(map[string]*models.Profile),
		turns:     make(map[string][]models.ConversationTurn),
		pending:   make(map[string]*models.PendingAction),
		usage:     make(map[string]int),
		subs:      make(map[string]*models.Subscription),
		credits:   make(map[string]int),
		interests: make(map[string][]models.InterestScore),
		pillars:   make(map[string]saju.Pillars),
	}
}

var _ Store = (*MemoryStore)(nil)

func userKey(platform models.Platform, userID string) string {
	return string(platform) + "|" + userID
}

func pendingKey(platform models.Platform, userID string, kind models.PendingKind) string {
	return userKey(platform, userID) + "|" + string(kind)
}

// --- profiles ---

func (s *MemoryStore) GetProfile(_ context.Context, platform models.Platform, userID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userKey(platform, userID)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpsertProfile(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[userKey(p.Platform, p.UserID)] = &cp
	return nil
}

func (s *MemoryStore) DeleteProfile(_ context.Context, platform models.Platform, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userKey(platform, userID)
	delete(s.profiles, key)
	delete(s.turns, key)
	return nil
}

func (s *MemoryStore) SetProfileActive(_ context.Context, platform models.Platform, userID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userKey(platform, userID)]; ok {
		p.IsActive = active
	}
	return nil
}

func (s *MemoryStore) TouchLastActive(_ context.Context, platform models.Platform, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userKey(platform, userID)]; ok {
		p.LastActiveAt = at
	}
	return nil
}

func (s *MemoryStore) ActiveProfilesSince(_ context.Context, since time.Time) ([]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Profile
	for _, p := range s.profiles {
		if p.IsActive && !p.LastActiveAt.Before(since) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) FindProfileByReferral(_ context.Context, code string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.ReferralCode == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) AddFreeUnlocks(_ context.Context, platform models.Platform, userID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userKey(platform, userID)]; ok {
		p.FreeUnlocks += delta
	}
	return nil
}

func (s *MemoryStore) SpendFreeUnlock(_ context.Context, platform models.Platform, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userKey(platform, userID)]
	if !ok || p.FreeUnlocks <= 0 {
		return false, nil
	}
	p.FreeUnlocks--
	return true, nil
}

func (s *MemoryStore) SetPremiumUntil(_ context.Context, platform models.Platform, userID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userKey(platform, userID)]; ok {
		p.PremiumUntil = &until
	}
	return nil
}

// --- conversation history ---

func (s *MemoryStore) AppendTurn(_ context.Context, turn *models.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userKey(turn.Platform, turn.UserID)
	list := append(s.turns[key], *turn)
	if len(list) > HistoryCap {
		list = list[len(list)-HistoryCap:]
	}
	s.turns[key] = list
	return nil
}

func (s *MemoryStore) RecentTurns(_ context.Context, platform models.Platform, userID string, n int) ([]models.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.turns[userKey(platform, userID)]
	if n > 0 && len(list) > n {
		list = list[len(list)-n:]
	}
	out := make([]models.ConversationTurn, len(list))
	copy(out, list)
	return out, nil
}

// --- pending actions ---

func (s *MemoryStore) SetPending(_ context.Context, a *models.PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.pending[pendingKey(a.Platform, a.UserID, a.Kind)] = &cp
	return nil
}

func (s *MemoryStore) GetPending(_ context.Context, platform models.Platform, userID string, kind models.PendingKind) (*models.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.pending[pendingKey(platform, userID, kind)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) DeletePending(_ context.Context, platform models.Platform, userID string, kind models.PendingKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, pendingKey(platform, userID, kind))
	return nil
}

func (s *MemoryStore) DeleteExpiredPending(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, a := range s.pending {
		if a.Expired(now) {
			delete(s.pending, k)
			n++
		}
	}
	return n, nil
}

// --- daily usage ---

func (s *MemoryStore) DailyUsage(_ context.Context, platform models.Platform, userID, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage[userKey(platform, userID)+"|"+day], nil
}

func (s *MemoryStore) IncrementDailyUsage(_ context.Context, platform models.Platform, userID, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[userKey(platform, userID)+"|"+day]++
	return nil
}

// --- billing ---

func (s *MemoryStore) Subscription(_ context.Context, platform models.Platform, userID string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[userKey(platform, userID)]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) CreditBalance(_ context.Context, platform models.Platform, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits[userKey(platform, userID)], nil
}

func (s *MemoryStore) SaveOrder(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, *o)
	return nil
}

func (s *MemoryStore) SaveSubscription(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subs[userKey(sub.Platform, sub.UserID)] = &cp
	return nil
}

func (s *MemoryStore) AddCredits(_ context.Context, platform models.Platform, userID string, delta int, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits[userKey(platform, userID)] += delta
	return nil
}

// --- interests ---

func (s *MemoryStore) TrackInterest(_ context.Context, platform models.Platform, userID string, categories []models.InterestCategory, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userKey(platform, userID)
	rows := s.interests[key]

	for _, cat := range categories {
		found := false
		for i := range rows {
			if rows[i].Category == cat {
				rows[i].AskCount++
				rows[i].WeightedCount += 2
				rows[i].LastAskedAt = now
				found = true
				break
			}
		}
		if !found {
			rows = append(rows, models.InterestScore{
				Category: cat, AskCount: 1, WeightedCount: 2, LastAskedAt: now,
			})
		}
	}
	recomputeScores(rows)
	s.interests[key] = rows
	return nil
}

func (s *MemoryStore) InterestScores(_ context.Context, platform models.Platform, userID string) ([]models.InterestScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.interests[userKey(platform, userID)]
	out := make([]models.InterestScore, len(rows))
	copy(out, rows)
	sort.Slice(out, func(i, j int) bool { return out[i].WeightedCount > out[j].WeightedCount })
	return out, nil
}

func (s *MemoryStore) DecayInterests(_ context.Context, olderThan time.Time, _ time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	decayed := 0
	for key, rows := range s.interests {
		touched := false
		for i := range rows {
			if rows[i].LastAskedAt.Before(olderThan) {
				rows[i].WeightedCount *= interestDecayFactor
				decayed++
				touched = true
			}
		}
		if touched {
			recomputeScores(rows)
			s.interests[key] = rows
		}
	}
	return decayed, nil
}

// --- push log ---

func (s *MemoryStore) AppendPushLog(_ context.Context, rec *models.PushRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLog = append(s.pushLog, *rec)
	return nil
}

func (s *MemoryStore) MarkPushOpened(_ context.Context, platform models.Platform, userID string, converted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Latest entry for the user carries the engagement flags.
	for i := len(s.pushLog) - 1; i >= 0; i-- {
		if s.pushLog[i].Platform == platform && s.pushLog[i].UserID == userID {
			s.pushLog[i].Opened = true
			if converted {
				s.pushLog[i].ConvertedToPremium = true
			}
			return nil
		}
	}
	return nil
}

// PushRecords returns a copy of the push log, oldest first. Tests and
// the ops surface read this; the Postgres store exposes the same data
// through SQL.
func (s *MemoryStore) PushRecords() []models.PushRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PushRecord, len(s.pushLog))
	copy(out, s.pushLog)
	return out
}

// --- pillar cache ---

func (s *MemoryStore) GetPillars(_ context.Context, key string) (*saju.Pillars, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pillars[key]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) PutPillars(_ context.Context, key string, p saju.Pillars) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pillars[key] = p
	return nil
}

// --- classics ---

func (s *MemoryStore) SearchChunks(_ context.Context, source string, embedding []float32, k int, minScore float64) ([]models.ClassicsChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ClassicsChunk
	for _, c := range s.chunks {
		if c.Source != source {
			continue
		}
		score := classics.Cosine(embedding, c.Embedding)
		if score < minScore {
			continue
		}
		c.Score = score
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *MemoryStore) InsertChunk(_ context.Context, c *models.ClassicsChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.ID = int64(len(s.chunks) + 1)
	s.chunks = append(s.chunks, cp)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}
