package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/internal/platform"
)

func testClient(srv *httptest.Server) *Client {
	return &Client{token: "test-token", baseURL: srv.URL, httpClient: &http.Client{Timeout: 5 * time.Second}}
}

func TestSendMessageBuildsKeyboard(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	id, err := c.SendMessage(context.Background(), "123", "### 제목\n본문",
		[]platform.Action{{Label: "🔓 전체 보기", Payload: platform.ActionUnlock}})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	assert.Equal(t, "*제목*\n본문", got["text"], "headers must fold to bold for Telegram")
	markup, ok := got["reply_markup"].(map[string]any)
	require.True(t, ok, "inline keyboard missing")
	rows := markup["inline_keyboard"].([]any)
	require.Len(t, rows, 1)
}

func TestBlockedUserIsDistinguishable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	_, err := c.SendMessage(context.Background(), "123", "hi", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUserBlocked, apperr.KindOf(err))
}

func TestOtherAPIErrorsAreUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: message is too long"}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	err := c.EditMessage(context.Background(), "123", 7, "x")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}

func TestMissingTokenFailsFast(t *testing.T) {
	c := NewClient("")
	_, err := c.SendMessage(context.Background(), "123", "hi", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}
