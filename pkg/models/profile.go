package models

import (
	"fmt"
	"time"
)

// Platform identifies the chat surface a user arrived from.
// The (platform, user id) pair is the primary identity everywhere.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformKakao    Platform = "kakao"
	PlatformWeb      Platform = "web"
)

// Gender as stored on the birth profile.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// BirthInput is a parsed birth tuple before it becomes a profile.
type BirthInput struct {
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Day    int    `json:"day"`
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Gender Gender `json:"gender"`
}

// Validate enforces the storable ranges. Day-of-month is range-checked only;
// calendar validity (Feb 30) is caught later by the pillar engine's date math.
func (b BirthInput) Validate() error {
	if b.Year < 1900 || b.Year > 2099 {
		return fmt.Errorf("birth year out of range: %d", b.Year)
	}
	if b.Month < 1 || b.Month > 12 {
		return fmt.Errorf("birth month out of range: %d", b.Month)
	}
	if b.Day < 1 || b.Day > 31 {
		return fmt.Errorf("birth day out of range: %d", b.Day)
	}
	if b.Hour < 0 || b.Hour > 23 {
		return fmt.Errorf("birth hour out of range: %d", b.Hour)
	}
	if b.Minute < 0 || b.Minute > 59 {
		return fmt.Errorf("birth minute out of range: %d", b.Minute)
	}
	if b.Gender != GenderMale && b.Gender != GenderFemale {
		return fmt.Errorf("invalid gender: %q", b.Gender)
	}
	return nil
}

// CacheKey is the immutable pillar-cache key for this birth tuple.
func (b BirthInput) CacheKey() string {
	return fmt.Sprintf("%04d%02d%02d-%02d%02d-%s", b.Year, b.Month, b.Day, b.Hour, b.Minute, b.Gender)
}

// Profile is one chat user's stored identity. Exactly one row per
// (platform, platform user id).
type Profile struct {
	Platform     Platform   `json:"platform"`
	UserID       string     `json:"userId"`
	DisplayName  string     `json:"displayName"`
	Birth        BirthInput `json:"birth"`
	IsActive     bool       `json:"isActive"`
	PremiumUntil *time.Time `json:"premiumUntil,omitempty"`
	FreeUnlocks  int        `json:"freeUnlocks"`
	ReferralCode string     `json:"referralCode"`
	LastActiveAt time.Time  `json:"lastActiveAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// HasPremiumFlag reports whether the profile-level premium flag is still valid.
func (p *Profile) HasPremiumFlag(now time.Time) bool {
	return p.PremiumUntil != nil && p.PremiumUntil.After(now)
}

// Tier is the entitlement class resolved from subscription, credits and the
// profile premium flag.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// DailyLimit returns the number of billable requests per KST day for a tier.
func (t Tier) DailyLimit() int {
	switch t {
	case TierPremium:
		return 9999
	case TierBasic:
		return 10
	default:
		return 3
	}
}

// Entitlement is the resolved view the rate limiter consumes.
type Entitlement struct {
	Tier         Tier       `json:"tier"`
	Credits      int        `json:"credits"`
	PremiumUntil *time.Time `json:"premiumUntil,omitempty"`
}
