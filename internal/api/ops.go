package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const cronRunTimeout = 30 * time.Minute

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.version,
		"features": gin.H{
			"database": s.cfg.HasDatabase(),
			"llm":      s.cfg.HasLLM(),
			"telegram": s.cfg.HasTelegram(),
			"kakao":    s.cfg.KakaoSkillSecret != "",
			"manse":    s.cfg.HasManse(),
		},
	})
}

// handleCronPush runs the daily fan-out on demand. The context is detached
// from the request so a platform-side timeout does not abort deliveries.
func (s *Server) handleCronPush(c *gin.Context) {
	if s.pushJob == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push sender not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cronRunTimeout)
	defer cancel()

	summary, err := s.pushJob.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("push run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleCronSweep(c *gin.Context) {
	if s.sweep == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sweep not configured"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.sweep(ctx)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
