package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/haneul-labs/saju-engine/internal/kakao"
	"github.com/haneul-labs/saju-engine/internal/orchestrator"
	"github.com/haneul-labs/saju-engine/internal/platform"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

const (
	// kakaoSoftDeadline must stay under the sixty seconds a callback URL
	// lives; work that misses it is logged and the user gets nothing.
	kakaoSoftDeadline = 55 * time.Second

	// kakaoSyncDeadline bounds the synchronous path. The builder gives a
	// skill about five seconds before showing its own fallback block, so
	// a slow turn must yield a placeholder bubble before then.
	kakaoSyncDeadline = 4 * time.Second
)

const kakaoSlowReplyText = "분석이 조금 오래 걸리고 있어요. 잠시 뒤에 다시 한 번 물어봐 주세요 🙏"

// handleKakaoSkill answers an OpenBuilder skill request. Blocks with a
// callback URL get an immediate ack and the real answer by POST; blocks
// without one are answered synchronously. Every outcome is HTTP 200 —
// any other status trips the builder's generic fallback block.
func (s *Server) handleKakaoSkill(c *gin.Context) {
	var req kakao.SkillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("undecodable kakao skill request")
		c.JSON(http.StatusOK, kakao.ErrorResponse(""))
		return
	}
	if req.UserID() == "" {
		c.JSON(http.StatusOK, kakao.ErrorResponse(""))
		return
	}

	in := orchestrator.Inbound{
		Platform: models.PlatformKakao,
		UserID:   req.UserID(),
		Text:     req.Utterance(),
	}

	if url := req.CallbackURL(); url != "" {
		c.JSON(http.StatusOK, kakao.CallbackAck())
		go s.finishKakaoTurn(in, url)
		return
	}

	// Synchronous path: the turn races the skill window. A turn that
	// outlives it gets a placeholder bubble; silence here would trip the
	// builder's fallback and the user would see nothing at all.
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.kakaoSync)
	defer cancel()

	collector := &collectingResponder{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.orch.Handle(ctx, in, collector); err != nil {
			log.Warn().Err(err).Str("user", in.UserID).Msg("kakao turn ended with error")
		}
	}()

	select {
	case <-done:
		c.JSON(http.StatusOK, kakao.BuildResponse(collector.merged()))
	case <-ctx.Done():
		log.Warn().Str("user", in.UserID).Msg("kakao sync turn missed the skill window")
		c.JSON(http.StatusOK, kakao.BuildResponse(platform.Reply{Text: kakaoSlowReplyText}))
	}
}

// finishKakaoTurn runs the turn off the request goroutine and posts the
// result to the single-use callback URL.
func (s *Server) finishKakaoTurn(in orchestrator.Inbound, callbackURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), kakaoSoftDeadline)
	defer cancel()

	collector := &collectingResponder{}
	if err := s.orch.Handle(ctx, in, collector); err != nil {
		log.Warn().Err(err).Str("user", in.UserID).Msg("kakao deferred turn ended with error")
	}

	reply := collector.merged()
	if reply.Text == "" {
		reply.Text = "잠시 문제가 생겼어요. 다시 한 번 말씀해 주세요."
	}
	if err := s.poster.Post(ctx, callbackURL, reply); err != nil {
		log.Warn().Err(err).Str("user", in.UserID).Msg("kakao callback delivery failed")
	}
}

// collectingResponder accumulates everything a turn wants to say; the
// kakao skill and the web API flush it as one response. It deliberately
// implements only Responder, so the orchestrator skips progress edits.
type collectingResponder struct {
	mu      sync.Mutex
	replies []platform.Reply
}

func (r *collectingResponder) Send(_ context.Context, reply platform.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply)
	return nil
}

// merged joins all texts and keeps the last reply's action chips.
func (r *collectingResponder) merged() platform.Reply {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out platform.Reply
	texts := make([]string, 0, len(r.replies))
	for _, rep := range r.replies {
		if rep.Text != "" {
			texts = append(texts, rep.Text)
		}
		if len(rep.Actions) > 0 {
			out.Actions = rep.Actions
		}
	}
	out.Text = strings.Join(texts, "\n\n")
	return out
}
