// Command engine is the saju assistant service: webhook server, daily
// push fan-out, and maintenance sweeps.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/haneul-labs/saju-engine/internal/api"
	"github.com/haneul-labs/saju-engine/internal/classics"
	"github.com/haneul-labs/saju-engine/internal/config"
	"github.com/haneul-labs/saju-engine/internal/db"
	"github.com/haneul-labs/saju-engine/internal/kst"
	"github.com/haneul-labs/saju-engine/internal/llm"
	"github.com/haneul-labs/saju-engine/internal/manse"
	"github.com/haneul-labs/saju-engine/internal/orchestrator"
	"github.com/haneul-labs/saju-engine/internal/pending"
	"github.com/haneul-labs/saju-engine/internal/push"
	"github.com/haneul-labs/saju-engine/internal/telegram"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:          "engine",
		Short:        "Saju assistant: chat webhooks, daily push, web API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the webhook and API server (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "push",
			Short: "Run one daily push fan-out and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runPush(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Expire pending actions and decay stale interests, then exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSweep(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Run: func(*cobra.Command, []string) {
				fmt.Println(version)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// wiring is everything the commands share, assembled once from the
// environment. Optional integrations come back nil and the callers
// degrade.
type wiring struct {
	cfg      *config.Config
	store    db.Store
	closeDB  func()
	chat     llm.ChatCompleter
	resolver *manse.Resolver
	tg       *telegram.Client
	pend     *pending.Manager
}

func buildWiring(ctx context.Context) (*wiring, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogger(cfg.LogLevel)

	w := &wiring{cfg: cfg, closeDB: func() {}}

	if cfg.HasDatabase() {
		pg, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("database unreachable, falling back to in-memory store")
			w.store = db.NewMemoryStore()
		} else {
			if err := pg.InitSchema(ctx); err != nil {
				return nil, fmt.Errorf("init schema: %w", err)
			}
			w.store = pg
			w.closeDB = pg.Close
		}
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store; state is lost on restart")
		w.store = db.NewMemoryStore()
	}

	if cfg.HasLLM() {
		w.chat = llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.OpenAIModel,
			EmbedModel: cfg.OpenAIEmbedModel,
			BaseURL:    cfg.OpenAIBaseURL,
			Timeout:    cfg.LLMTimeout,
		})
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, analyses run in degraded template mode")
	}

	w.resolver = manse.NewResolver(cfg.ManseAPIURL, w.store)
	w.tg = telegram.NewClient(cfg.TelegramBotToken)
	w.pend = pending.NewManager(w.store, kst.Now)
	return w, nil
}

func (w *wiring) sweepFunc() func(context.Context) {
	return func(ctx context.Context) {
		push.RunSweep(ctx, w.store, w.pend, kst.Now)
	}
}

func (w *wiring) pushJob(events push.Events) *push.Job {
	if !w.cfg.HasTelegram() {
		return nil
	}
	sender := &api.TelegramPushSender{Client: w.tg}
	return push.NewJob(w.store, w.chat, w.resolver, sender, events, kst.Now)
}

func runServe(ctx context.Context) error {
	w, err := buildWiring(ctx)
	if err != nil {
		return err
	}
	defer w.closeDB()

	hub := api.NewHub()
	go hub.Run()

	var retriever *classics.Retriever
	if embedder, ok := w.chat.(llm.Embedder); ok {
		retriever = classics.NewRetriever(embedder, w.store)
	}

	orch := orchestrator.New(w.store, w.chat, w.resolver, retriever, hub, kst.Now)
	job := w.pushJob(hub)
	if job == nil {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, daily push is disabled")
	}

	srv := api.NewServer(w.cfg, orch, w.store, w.chat, w.resolver, w.tg, hub, job, w.sweepFunc(), version)

	if w.cfg.EnableCron && job != nil {
		sched, err := push.NewScheduler(job, w.sweepFunc(), w.cfg.PushHourKST, w.cfg.PushMinuteKST)
		if err != nil {
			return fmt.Errorf("cron setup: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		log.Info().Int("hour_kst", w.cfg.PushHourKST).Int("minute_kst", w.cfg.PushMinuteKST).Msg("in-process cron enabled")
	}

	httpSrv := &http.Server{
		Addr:              ":" + w.cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", w.cfg.Port).Str("version", version).Msg("engine listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func runPush(ctx context.Context) error {
	w, err := buildWiring(ctx)
	if err != nil {
		return err
	}
	defer w.closeDB()

	job := w.pushJob(nil)
	if job == nil {
		return fmt.Errorf("daily push needs TELEGRAM_BOT_TOKEN")
	}

	summary, err := job.Run(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("total", summary.Total).Int("success", summary.Success).Int("failed", summary.Failed).Msg("push run finished")
	return nil
}

func runSweep(ctx context.Context) error {
	w, err := buildWiring(ctx)
	if err != nil {
		return err
	}
	defer w.closeDB()

	expired, decayed := push.RunSweep(ctx, w.store, w.pend, kst.Now)
	log.Info().Int("expired", expired).Int("decayed", decayed).Msg("sweep finished")
	return nil
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}
