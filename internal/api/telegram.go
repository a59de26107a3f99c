package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/haneul-labs/saju-engine/internal/orchestrator"
	"github.com/haneul-labs/saju-engine/internal/platform"
	"github.com/haneul-labs/saju-engine/internal/telegram"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// telegramUpdate is the Bot API update reduced to what the orchestrator
// consumes.
type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64 `json:"message_id"`
		From      *struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
			Username  string `json:"username"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		From struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
		} `json:"from"`
		Data    string `json:"data"`
		Message *struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

// handleTelegramWebhook acknowledges every update with 200 immediately
// decodable; Telegram retries non-200s forever. Processing runs on the
// request goroutine because Telegram's webhook timeout is generous and
// the orchestrator serializes per user anyway.
func (s *Server) handleTelegramWebhook(c *gin.Context) {
	var update telegramUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		log.Warn().Err(err).Msg("undecodable telegram update")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	in, chatID, ok := s.inboundFromUpdate(update)
	if !ok {
		// Stickers, edits, joins: ack and ignore.
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if update.CallbackQuery != nil {
		// Ack the tap promptly so the client stops its spinner.
		if err := s.tg.AnswerCallback(c.Request.Context(), update.CallbackQuery.ID, ""); err != nil {
			log.Debug().Err(err).Msg("callback ack failed")
		}
	}

	responder := &telegramResponder{client: s.tg, chatID: chatID}
	if err := s.orch.Handle(c.Request.Context(), in, responder); err != nil {
		log.Warn().Err(err).Str("user", in.UserID).Msg("telegram turn ended with error")
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) inboundFromUpdate(u telegramUpdate) (orchestrator.Inbound, string, bool) {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		cb := u.CallbackQuery
		chatID := strconv.FormatInt(cb.Message.Chat.ID, 10)
		return orchestrator.Inbound{
			Platform:    models.PlatformTelegram,
			UserID:      strconv.FormatInt(cb.From.ID, 10),
			DisplayName: cb.From.FirstName,
			Callback:    &orchestrator.Callback{ID: cb.ID, Payload: cb.Data},
		}, chatID, true

	case u.Message != nil && u.Message.From != nil && u.Message.Text != "":
		m := u.Message
		return orchestrator.Inbound{
			Platform:    models.PlatformTelegram,
			UserID:      strconv.FormatInt(m.From.ID, 10),
			DisplayName: m.From.FirstName,
			Text:        m.Text,
		}, strconv.FormatInt(m.Chat.ID, 10), true
	}
	return orchestrator.Inbound{}, "", false
}

// telegramResponder adapts the Bot API client to the orchestrator's
// duplex responder: real replies, typing, and the editable progress
// message.
type telegramResponder struct {
	client *telegram.Client
	chatID string
}

func (r *telegramResponder) Send(ctx context.Context, reply platform.Reply) error {
	_, err := r.client.SendMessage(ctx, r.chatID, reply.Text, reply.Actions)
	return err
}

func (r *telegramResponder) Typing(ctx context.Context) error {
	return r.client.SendTyping(ctx, r.chatID)
}

func (r *telegramResponder) SendProgress(ctx context.Context, text string) (int64, error) {
	return r.client.SendMessage(ctx, r.chatID, text, nil)
}

func (r *telegramResponder) EditProgress(ctx context.Context, id int64, text string) error {
	return r.client.EditMessage(ctx, r.chatID, id, text)
}

func (r *telegramResponder) DeleteProgress(ctx context.Context, id int64) error {
	return r.client.DeleteMessage(ctx, r.chatID, id)
}

// TelegramPushSender adapts the Bot API client to the push job. The
// Telegram chat id doubles as the stored platform user id.
type TelegramPushSender struct {
	Client *telegram.Client
}

func (s *TelegramPushSender) Supports(p models.Platform) bool {
	return p == models.PlatformTelegram
}

func (s *TelegramPushSender) Send(ctx context.Context, _ models.Platform, userID, text string, actions []platform.Action) error {
	_, err := s.Client.SendMessage(ctx, userID, text, actions)
	return err
}
