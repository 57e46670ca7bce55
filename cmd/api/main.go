package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/revofy/revofy-backend/api/routes"
	"github.com/revofy/revofy-backend/internal/accounts"
	"github.com/revofy/revofy-backend/internal/admission"
	"github.com/revofy/revofy-backend/internal/auth"
	"github.com/revofy/revofy-backend/internal/completions"
	"github.com/revofy/revofy-backend/internal/quota"
	"github.com/revofy/revofy-backend/internal/subscriptions"
	"github.com/revofy/revofy-backend/internal/webhooks/lemonsqueezy"
	"github.com/revofy/revofy-backend/pkg/config"
	"github.com/revofy/revofy-backend/pkg/db"
	"github.com/revofy/revofy-backend/pkg/instance"
	"github.com/revofy/revofy-backend/pkg/logger"
	"github.com/revofy/revofy-backend/pkg/metrics"
	"github.com/revofy/revofy-backend/pkg/migrate"
	"github.com/revofy/revofy-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := subscriptions.ValidateRules(); err != nil {
		logg.Error(context.Background(), "billing event rules incomplete", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	billingMetrics := metrics.NewBillingMetrics(registry)

	conn := dbClient.DB()
	accountsRepo := accounts.NewRepository(conn)
	initializer := accounts.NewInitializer(nil)
	subsRepo := subscriptions.NewRepository(conn)
	ledger := quota.NewLedger(conn)

	authService, err := auth.NewService(auth.ServiceParams{
		TransactionRunner: dbClient,
		Accounts:          accountsRepo,
		Initializer:       initializer,
		JWTConfig:         cfg.JWT,
		PasswordConfig:    cfg.Password,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	gate, err := admission.NewGate(admission.Params{
		Subscriptions:   subsRepo,
		Ledger:          ledger,
		Limits:          quota.Limits{Daily: cfg.Quota.DailyLimit, Monthly: cfg.Quota.MonthlyLimit},
		FreeTierEnabled: cfg.Quota.FreeTierEnabled,
		Metrics:         billingMetrics,
		Logger:          logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create admission gate", err)
		os.Exit(1)
	}

	webhookService, err := lemonsqueezy.NewService(lemonsqueezy.ServiceParams{
		TransactionRunner: dbClient,
		Resolver:          accounts.NewResolver(accountsRepo, initializer),
		Subscriptions:     subscriptions.NewService(nil),
		Logger:            logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create webhook service", err)
		os.Exit(1)
	}

	replayGuard, err := lemonsqueezy.NewReplayGuard(redisClient, cfg.LemonSqueezy.EventReplayTTL, lemonsqueezy.ReplayScope)
	if err != nil {
		logg.Error(ctx, "failed to create webhook replay guard", err)
		os.Exit(1)
	}

	if cfg.OpenAI.APIKey == "" {
		logg.Warn(ctx, "completion api key not configured; chat requests will fail after admission")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"instance":      instance.GetID(),
		"daily_limit":   cfg.Quota.DailyLimit,
		"monthly_limit": cfg.Quota.MonthlyLimit,
		"free_tier":     cfg.Quota.FreeTierEnabled,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.Params{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Gatherer:      registry,
			Metrics:       billingMetrics,
			Auth:          authService,
			Gate:          gate,
			Ledger:        ledger,
			Subscriptions: subsRepo,
			Completions:   completions.NewClient(cfg.OpenAI),
			Webhooks:      webhookService,
			ReplayGuard:   replayGuard,
		}),
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}
