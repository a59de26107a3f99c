// Package api is the HTTP surface: platform webhooks (Telegram, Kakao
// skill), the web JSON/multipart API, the payment and cron webhooks,
// health, metrics and the ops websocket stream. Handlers translate the
// wire shape and delegate everything conversational to the orchestrator.
package api

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/haneul-labs/saju-engine/internal/config"
	"github.com/haneul-labs/saju-engine/internal/db"
	"github.com/haneul-labs/saju-engine/internal/kakao"
	"github.com/haneul-labs/saju-engine/internal/kst"
	"github.com/haneul-labs/saju-engine/internal/llm"
	"github.com/haneul-labs/saju-engine/internal/manse"
	"github.com/haneul-labs/saju-engine/internal/orchestrator"
	"github.com/haneul-labs/saju-engine/internal/prompt"
	"github.com/haneul-labs/saju-engine/internal/push"
	"github.com/haneul-labs/saju-engine/internal/telegram"
)

// Server carries the wired collaborators the handlers need.
type Server struct {
	cfg     *config.Config
	orch    *orchestrator.Orchestrator
	store   db.Store
	chat    llm.ChatCompleter
	manse   *manse.Resolver
	tg      *telegram.Client
	poster  *kakao.Poster
	prompts *prompt.Builder
	hub     *Hub
	pushJob *push.Job
	sweep   func(context.Context)
	version string

	// kakaoSync bounds the synchronous kakao skill path; tests shrink it.
	kakaoSync time.Duration
}

// NewServer assembles the handler set. Any collaborator may be nil when
// its feature is unconfigured; the affected endpoints degrade per spec
// (health reports the flags).
func NewServer(cfg *config.Config, orch *orchestrator.Orchestrator, store db.Store, chat llm.ChatCompleter, resolver *manse.Resolver, tg *telegram.Client, hub *Hub, pushJob *push.Job, sweep func(context.Context), version string) *Server {
	return &Server{
		cfg:     cfg,
		orch:    orch,
		store:   store,
		chat:    chat,
		manse:   resolver,
		tg:      tg,
		poster:  kakao.NewPoster(),
		prompts: prompt.NewBuilder(kst.Now),
		hub:     hub,
		pushJob: pushJob,
		sweep:   sweep,
		version: version,

		kakaoSync: kakaoSyncDeadline,
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), corsMiddleware(s.cfg.AllowedOrigins))

	if s.cfg.KakaoSkillSecret == "" {
		log.Warn().Msg("KAKAO_SKILL_SECRET not set, kakao webhook accepts unauthenticated requests")
	}
	if s.cfg.CronSecret == "" {
		log.Warn().Msg("CRON_SECRET not set, cron endpoints accept unauthenticated requests")
	}

	// Platform webhooks.
	r.POST("/webhook/telegram", secretAuth("X-Telegram-Bot-Api-Secret-Token", s.cfg.TelegramWebhookSecret), s.handleTelegramWebhook)
	r.POST("/webhook/kakao", secretAuth("X-Skill-Secret", s.cfg.KakaoSkillSecret), s.handleKakaoSkill)
	r.OPTIONS("/webhook/kakao", preflightOK)
	r.HEAD("/webhook/kakao", preflightOK)

	// Cron triggers for platforms with an external scheduler.
	cron := r.Group("/cron", secretAuth("X-Cron-Secret", s.cfg.CronSecret))
	{
		cron.POST("/push", s.handleCronPush)
		cron.POST("/sweep", s.handleCronSweep)
	}

	api := r.Group("/api/v1")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/stream", s.hub.Subscribe)

		web := api.Group("", newIPLimiter(30, 10).middleware())
		{
			web.POST("/report", s.handleReport)
			web.POST("/saju", s.handleWebSaju)
			web.POST("/relationship", s.handleWebRelationship)
			web.POST("/ai-chat", s.handleWebChat)
		}

		api.POST("/payment/webhook", bearerAuth(s.cfg.APIAuthToken), s.handlePaymentWebhook)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func preflightOK(c *gin.Context) { c.Status(204) }

// corsMiddleware mirrors the configured origins; "*" or an empty list
// opens the API, which is the development default.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	open := len(allowed) == 0 || (len(allowed) == 1 && allowed[0] == "*")
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if open {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, a := range allowed {
				if a == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, HEAD")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// requestLogger is the structured replacement for gin's default logger.
// Webhook paths are logged at debug to keep chat traffic out of info.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := log.Info()
		if strings.HasPrefix(c.Request.URL.Path, "/webhook/") {
			ev = log.Debug()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
