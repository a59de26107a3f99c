// Package telegram is a minimal Bot API client covering what the
// orchestrator and the push scheduler need: send, edit, delete, typing
// indicator, callback acks and inline keyboards. A 403 from the API is
// surfaced as a distinct user-blocked kind so the scheduler can
// deactivate the profile instead of retrying.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/internal/platform"
)

const apiBase = "https://api.telegram.org"

// Client calls the Bot API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client; an empty token yields a client whose calls
// all fail with an unavailable kind, which keeps wiring simple when the
// feature is unconfigured.
func NewClient(token string) *Client {
	return &Client{
		token:      token,
		baseURL:    apiBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

func keyboardFor(actions []platform.Action) *inlineKeyboardMarkup {
	if len(actions) == 0 {
		return nil
	}
	row := make([]inlineKeyboardButton, 0, len(actions))
	for _, a := range actions {
		row = append(row, inlineKeyboardButton{Text: a.Label, CallbackData: a.Payload})
	}
	return &inlineKeyboardMarkup{InlineKeyboard: [][]inlineKeyboardButton{row}}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// SendMessage delivers a markdown message, returning the message id for
// later edits.
func (c *Client) SendMessage(ctx context.Context, chatID string, text string, actions []platform.Action) (int64, error) {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       platform.ToTelegram(text),
		"parse_mode": "Markdown",
	}
	if kb := keyboardFor(actions); kb != nil {
		payload["reply_markup"] = kb
	}

	raw, err := c.call(ctx, "sendMessage", payload)
	if err != nil {
		return 0, err
	}
	var msg struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, fmt.Errorf("decode sendMessage result: %w", err)
	}
	return msg.MessageID, nil
}

// EditMessage replaces a previously sent message's text. Edit failures
// during progress loops are the caller's to swallow.
func (c *Client) EditMessage(ctx context.Context, chatID string, messageID int64, text string) error {
	_, err := c.call(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       platform.ToTelegram(text),
		"parse_mode": "Markdown",
	})
	return err
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, chatID string, messageID int64) error {
	_, err := c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	})
	return err
}

// SendTyping shows the typing indicator.
func (c *Client) SendTyping(ctx context.Context, chatID string) error {
	_, err := c.call(ctx, "sendChatAction", map[string]any{
		"chat_id": chatID,
		"action":  "typing",
	})
	return err
}

// AnswerCallback acks a callback tap, with optional toast text.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	_, err := c.call(ctx, "answerCallbackQuery", payload)
	return err
}

func (c *Client) call(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	if c.token == "" {
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "telegram bot token not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.KindUpstreamTimeout, "telegram "+method+" cancelled", err)
		}
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, "telegram "+method+" failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(raw, &api); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !api.OK {
		if isBlocked(api) {
			return nil, apperr.Newf(apperr.KindUserBlocked, "telegram %s: %s", method, api.Description)
		}
		log.Debug().Str("method", method).Int("code", api.ErrorCode).Str("description", api.Description).Msg("telegram api error")
		return nil, apperr.Newf(apperr.KindUpstreamUnavailable, "telegram %s: %d %s", method, api.ErrorCode, api.Description)
	}
	return api.Result, nil
}

// isBlocked recognizes the API shapes Telegram uses when the user has
// blocked the bot or deleted their account.
func isBlocked(api apiResponse) bool {
	if api.ErrorCode != http.StatusForbidden {
		return false
	}
	desc := strings.ToLower(api.Description)
	return strings.Contains(desc, "blocked") || strings.Contains(desc, "deactivated")
}
