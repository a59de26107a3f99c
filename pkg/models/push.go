package models

import "time"

// PushStatus records how a daily push delivery ended.
type PushStatus string

const (
	PushSuccess PushStatus = "success"
	PushFailed  PushStatus = "failed"
	PushRetried PushStatus = "retried"
)

// PushRecord is one logged fan-out delivery attempt outcome.
type PushRecord struct {
	Platform           Platform         `json:"platform"`
	UserID             string           `json:"userId"`
	Category           InterestCategory `json:"category"`
	Message            string           `json:"message"`
	Status             PushStatus       `json:"status"`
	Opened             bool             `json:"opened"`
	ConvertedToPremium bool             `json:"convertedToPremium"`
	SentAt             time.Time        `json:"sentAt"`
}

// PushSummary is the aggregate a fan-out run reports back.
type PushSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// ClassicsChunk is one embedded passage from a classical source text.
type ClassicsChunk struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Section   string    `json:"section"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	Score     float64   `json:"score,omitempty"`
}
