// Package platform defines the platform-neutral reply shape the
// orchestrator emits and the text transforms the adapters apply:
// markdown conversion for Telegram, plain-text flattening and bubble
// splitting for Kakao.
package platform

// Action is a platform-neutral tappable chip: an inline keyboard button
// on Telegram, a quick reply on Kakao.
type Action struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// Reply is what the orchestrator hands the adapter for delivery.
type Reply struct {
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
}

// Well-known action payloads shared between the orchestrator and the
// adapters' callback handlers.
const (
	ActionUnlock      = "unlock"
	ActionPushOpen    = "push_open"
	ActionPushPremium = "push_premium"
	ActionDailyMore   = "daily_more"
)
