package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	_ "github.com/jackc/pgx/v5/stdlib"

	"voicecampaign/internal/agent"
	"voicecampaign/internal/audit"
	"voicecampaign/internal/auth"
	"voicecampaign/internal/bridge"
	"voicecampaign/internal/campaign"
	"voicecampaign/internal/config"
	"voicecampaign/internal/httpapi"
	"voicecampaign/internal/pending"
	"voicecampaign/internal/reconcile"
	"voicecampaign/internal/stats"
	"voicecampaign/internal/store"
	"voicecampaign/internal/telephony"
	"voicecampaign/pkg/logger"
	"voicecampaign/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional env file for local runs; real deployments set env directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// The call core: durable state, claim-once call parameters, the agent
	// session initiator, the media bridge, the webhook reconciler and the
	// campaign driver. All state is owned here and handed down; nothing is
	// package-global.
	st := store.NewPostgres(db)
	pend := pending.NewRedis(rdb, cfg.Dialer.PendingParamsTTL)

	agentClient := agent.NewClient(cfg.Agent)
	initiator := agent.NewInitiator(agentClient, st, log)

	reconciler := reconcile.New(st, reconcile.NewRedisDedup(rdb), cfg.Dialer.SuccessThresholdSeconds, log)

	bridgeMgr := bridge.NewManager(
		bridge.NewRegistry(),
		pend,
		bridge.InitiatorOpener{Initiator: initiator},
		reconciler,
		log,
	)

	dialer := telephony.NewTwilioDialer(cfg.Telephony)
	runner := campaign.NewRunner(st, pend, dialer, campaign.NewRedisGuard(rdb), cfg, log)

	h := httpapi.Handlers{
		Auth:       authManager,
		Runner:     runner,
		Stats:      stats.NewService(st),
		Reconciler: reconciler,
		Bridge:     bridgeMgr,
		Audit:      audit.NewService(audit.NewPostgresRepo(db)),
		Log:        log,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The telephony provider connects from its own infrastructure;
			// there is no browser origin to check.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Media streams hold their connections open well past any sane write
		// timeout; hijacked websocket connections are exempt from these, so
		// the limits below only bound the plain HTTP surface.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Close any media streams still bridged; the provider will deliver their
	// terminal status webhooks to the next process.
	bridgeMgr.Shutdown()

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
