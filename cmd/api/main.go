package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/reviewcash/backend/internal/actions"
	"github.com/reviewcash/backend/internal/auth"
	"github.com/reviewcash/backend/internal/config"
	"github.com/reviewcash/backend/internal/handlers"
	"github.com/reviewcash/backend/internal/lifecycle"
	"github.com/reviewcash/backend/internal/metrics"
	"github.com/reviewcash/backend/internal/middleware"
	"github.com/reviewcash/backend/internal/notify"
	"github.com/reviewcash/backend/internal/ratelimit"
	"github.com/reviewcash/backend/internal/router"
	"github.com/reviewcash/backend/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	envFile := pflag.String("env-file", "", "load environment from this file instead of .env")
	addr := pflag.String("addr", "", "listen address (default 0.0.0.0:$PORT)")
	pflag.Parse()

	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	cfg, err := config.Load(envFiles...)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer b.close()

	if err := seedRoster(ctx, b.store.Roster(), cfg.Admin.Roster); err != nil {
		slog.Error("Failed to seed operator roster", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	// Notifications
	var sender notify.Sender = notify.LogSender{Logger: logger}
	if cfg.Telegram.BotToken != "" {
		sender = notify.NewTelegramSender(cfg.Telegram.BotToken)
	} else {
		slog.Warn("TELEGRAM_BOT_TOKEN not set, notifications are logged only")
	}
	fanout := notify.NewFanout(b.store.Roster(), cfg.Admin.PrimaryAdmins, sender, m, logger)
	if err := b.wireNotifier(fanout, logger); err != nil {
		slog.Error("Failed to set up notifications", "error", err)
		os.Exit(1)
	}

	// Cooldowns live in Redis when configured, else in the primary store.
	var cooldowns store.Cooldowns = b.store.Cooldowns()
	if cfg.Redis.URL != "" {
		rdb, err := ratelimit.ConnectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		cooldowns = ratelimit.NewRedisStore(rdb)
		slog.Info("Cooldowns stored in Redis")
	}

	policy := lifecycle.DefaultPolicy()
	policy.MinTopUp = cfg.Policy.MinTopUp
	policy.MinWithdraw = cfg.Policy.MinWithdraw
	policy.MaxAmount = cfg.Policy.MaxAmount
	policy.StrictWithdraw = cfg.Policy.StrictWithdraw
	if len(cfg.Policy.Banks) > 0 {
		policy.Banks = cfg.Policy.Banks
	}

	lc := lifecycle.New(lifecycle.Deps{
		Store:    b.store,
		Limiter:  ratelimit.New(cooldowns),
		Notifier: b.notifier,
		Policy:   policy,
		Metrics:  m,
		Logger:   logger,
	})

	validator, err := actions.NewValidator()
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}
	tokens, err := auth.NewService(auth.Config{
		Secret:        cfg.Admin.TokenSecret,
		TTL:           cfg.Admin.TokenTTL,
		PrimaryAdmins: cfg.Admin.PrimaryAdmins,
	})
	if err != nil {
		slog.Error("Admin token service init failed", "error", err)
		os.Exit(1)
	}

	hnd := handlers.New(lc, validator, b.store.Roster(), logger)
	if cfg.Telegram.VerifyInitData {
		verifier, err := auth.NewInitDataVerifier(cfg.Telegram.BotToken, cfg.Telegram.InitDataMaxAge)
		if err != nil {
			slog.Error("WebApp init data verifier init failed", "error", err)
			os.Exit(1)
		}
		hnd.InitData = verifier
	} else {
		slog.Warn("WebApp init data verification is off; /webapp trusts user.id from the body")
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.App.TrustedProxies)
	if err != nil {
		slog.Error("Invalid TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}
	clientLimit := middleware.NewClientRateLimit(cfg.WebApp.RPS, cfg.WebApp.Burst, logger).TrustProxies(proxies)
	clientLimit.StartCleanup(time.Minute, ctx.Done())

	handler := router.New(router.Config{
		Handler:     hnd,
		Tokens:      tokens,
		Metrics:     m,
		RateLimit:   clientLimit,
		CORSOrigins: cfg.App.CORSOrigins,
		Logger:      logger,
	})

	// Start the notification workers
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go func() {
		if err := b.start(workerCtx); err != nil && workerCtx.Err() == nil {
			slog.Error("Notification workers stopped", "error", err)
		}
	}()

	serverAddr := *addr
	if serverAddr == "" {
		serverAddr = net.JoinHostPort("0.0.0.0", cfg.App.Port)
	}
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting HTTP server", "addr", serverAddr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown", "error", err)
	}
	b.stop(shutdownCtx)
}
