package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role of a conversation turn, OpenAI wire convention.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationTurn is one stored message of a user's rolling history.
type ConversationTurn struct {
	Platform  Platform  `json:"platform"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// PendingKind discriminates the single pending-action slot a user may hold.
type PendingKind string

const (
	PendingReferral      PendingKind = "referral"
	PendingCompatibility PendingKind = "compatibility"
)

// ReferralPayload carries the code attached to a deep-link /start.
type ReferralPayload struct {
	Code string `json:"code"`
}

// CompatibilityPayload carries the original question asked before the
// partner's birth info arrived.
type CompatibilityPayload struct {
	Question string `json:"question"`
}

// PendingAction is the at-most-one outstanding multi-turn action per user.
// Payload is stored raw and decoded against Kind by the caller.
type PendingAction struct {
	Platform  Platform        `json:"platform"`
	UserID    string          `json:"userId"`
	Kind      PendingKind     `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt time.Time       `json:"expiresAt"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Expired reports whether the slot lapsed at the given instant.
func (a *PendingAction) Expired(now time.Time) bool {
	return !a.ExpiresAt.After(now)
}

// Referral decodes the payload as a referral payload.
func (a *PendingAction) Referral() (ReferralPayload, error) {
	var p ReferralPayload
	if a.Kind != PendingReferral {
		return p, fmt.Errorf("pending action is %q, not referral", a.Kind)
	}
	if err := json.Unmarshal(a.Payload, &p); err != nil {
		return p, fmt.Errorf("decode referral payload: %w", err)
	}
	return p, nil
}

// Compatibility decodes the payload as a compatibility payload.
func (a *PendingAction) Compatibility() (CompatibilityPayload, error) {
	var p CompatibilityPayload
	if a.Kind != PendingCompatibility {
		return p, fmt.Errorf("pending action is %q, not compatibility", a.Kind)
	}
	if err := json.Unmarshal(a.Payload, &p); err != nil {
		return p, fmt.Errorf("decode compatibility payload: %w", err)
	}
	return p, nil
}

// NewPendingAction builds a slot with an encoded payload.
func NewPendingAction(platform Platform, userID string, kind PendingKind, payload any, now time.Time, ttl time.Duration) (*PendingAction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode pending payload: %w", err)
	}
	return &PendingAction{
		Platform:  platform,
		UserID:    userID,
		Kind:      kind,
		Payload:   raw,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// InterestCategory buckets what a user keeps asking about.
type InterestCategory string

const (
	InterestLove    InterestCategory = "love"
	InterestWealth  InterestCategory = "wealth"
	InterestCareer  InterestCategory = "career"
	InterestHealth  InterestCategory = "health"
	InterestStudy   InterestCategory = "study"
	InterestFamily  InterestCategory = "family"
	InterestFortune InterestCategory = "fortune"
	InterestTiming  InterestCategory = "timing"
	InterestGeneral InterestCategory = "general"
)

// InterestScore is one category row of a user's interest vector.
type InterestScore struct {
	Category      InterestCategory `json:"category"`
	AskCount      int              `json:"askCount"`
	WeightedCount float64          `json:"weightedCount"`
	Score         float64          `json:"score"`
	LastAskedAt   time.Time        `json:"lastAskedAt"`
}
