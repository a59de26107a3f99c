// Package kakao shapes OpenBuilder skill responses and posts deferred
// results to single-use callback URLs. Kakao bubbles carry plain text
// only, at most three per turn, a thousand characters each; the bubble
// splitting lives in internal/platform.
package kakao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/internal/platform"
)

// SkillRequest is the inbound OpenBuilder payload, reduced to the fields
// the orchestrator needs.
type SkillRequest struct {
	UserRequest struct {
		Utterance string `json:"utterance"`
		User      struct {
			ID string `json:"id"`
		} `json:"user"`
		CallbackURL string `json:"callbackUrl"`
	} `json:"userRequest"`
}

// UserID returns the platform user id.
func (r *SkillRequest) UserID() string { return r.UserRequest.User.ID }

// Utterance returns the raw user text.
func (r *SkillRequest) Utterance() string { return r.UserRequest.Utterance }

// CallbackURL returns the single-use deferred-response URL, empty when
// the block has callbacks disabled.
func (r *SkillRequest) CallbackURL() string { return r.UserRequest.CallbackURL }

type simpleText struct {
	Text string `json:"text"`
}

type output struct {
	SimpleText simpleText `json:"simpleText"`
}

type quickReply struct {
	Label       string `json:"label"`
	Action      string `json:"action"`
	MessageText string `json:"messageText"`
}

type template struct {
	Outputs      []output     `json:"outputs"`
	QuickReplies []quickReply `json:"quickReplies,omitempty"`
}

// SkillResponse is the OpenBuilder response envelope.
type SkillResponse struct {
	Version     string    `json:"version"`
	Template    *template `json:"template,omitempty"`
	UseCallback bool      `json:"useCallback,omitempty"`
}

// BuildResponse flattens a reply into skill bubbles and quick replies.
func BuildResponse(reply platform.Reply) SkillResponse {
	bubbles := platform.SplitBubbles(platform.ToPlain(reply.Text))
	outputs := make([]output, 0, len(bubbles))
	for _, b := range bubbles {
		outputs = append(outputs, output{SimpleText: simpleText{Text: b}})
	}
	if len(outputs) == 0 {
		outputs = append(outputs, output{SimpleText: simpleText{Text: "..."}})
	}

	var quicks []quickReply
	for _, a := range reply.Actions {
		quicks = append(quicks, quickReply{Label: a.Label, Action: "message", MessageText: a.Payload})
	}

	return SkillResponse{Version: "2.0", Template: &template{Outputs: outputs, QuickReplies: quicks}}
}

// CallbackAck tells OpenBuilder the real answer will arrive through the
// callback URL.
func CallbackAck() SkillResponse {
	return SkillResponse{Version: "2.0", UseCallback: true}
}

// ErrorResponse is the always-200 apology bubble; returning an HTTP
// error would trigger the builder's own fallback block instead.
func ErrorResponse(msg string) SkillResponse {
	if msg == "" {
		msg = "잠시 문제가 생겼어요. 다시 한 번 말씀해 주세요."
	}
	return SkillResponse{Version: "2.0", Template: &template{Outputs: []output{{SimpleText: simpleText{Text: msg}}}}}
}

// Poster delivers deferred responses to callback URLs.
type Poster struct {
	httpClient *http.Client
}

// NewPoster builds a callback poster.
func NewPoster() *Poster {
	return &Poster{httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// Post sends the final response to a callback URL. The URL lives about
// sixty seconds and accepts exactly one POST; there is no retry.
func (p *Poster) Post(ctx context.Context, callbackURL string, reply platform.Reply) error {
	body, err := json.Marshal(BuildResponse(reply))
	if err != nil {
		return fmt.Errorf("marshal callback response: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUpstreamUnavailable, "kakao callback post failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.Newf(apperr.KindUpstreamUnavailable, "kakao callback returned status %d", resp.StatusCode)
	}
	return nil
}
