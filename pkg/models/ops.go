package models

import "time"

// OpsEvent is one anonymized entry on the ops websocket stream:
// conversation activity and push-job progress. No message content is
// ever carried, only coarse labels.
type OpsEvent struct {
	Type     string    `json:"type"`
	Platform Platform  `json:"platform,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// Ops event types.
const (
	OpsInbound      = "inbound"
	OpsReply        = "reply"
	OpsError        = "error"
	OpsPushStarted  = "push_started"
	OpsPushProgress = "push_progress"
	OpsPushDone     = "push_done"
)
