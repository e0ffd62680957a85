package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/YeLlowseaG/clientseeker/internal/cron"
	"github.com/YeLlowseaG/clientseeker/internal/ledger"
	"github.com/YeLlowseaG/clientseeker/internal/orders"
	"github.com/YeLlowseaG/clientseeker/internal/subscriptions"
	"github.com/YeLlowseaG/clientseeker/internal/users"
	"github.com/YeLlowseaG/clientseeker/pkg/config"
	"github.com/YeLlowseaG/clientseeker/pkg/db"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
	"github.com/YeLlowseaG/clientseeker/pkg/metrics"
	"github.com/YeLlowseaG/clientseeker/pkg/migrate"
	"github.com/YeLlowseaG/clientseeker/pkg/outbox"
	"github.com/YeLlowseaG/clientseeker/pkg/redis"
)

const lockNameFormat = "cron-worker:%s"

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()
	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	emitter := outbox.NewService(outboxRepo, logg)
	userRepo := users.NewRepository(gormDB)
	subRepo := subscriptions.NewRepository(gormDB)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(gormDB),
		Users:  userRepo,
		Tx:     dbClient,
		Usage:  subscriptions.NewUsageRecorder(subRepo),
		Outbox: emitter,
		Logger: logg,
	})
	requireResource(ctx, logg, "ledger service", err)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:   subRepo,
		Users:  userRepo,
		Ledger: ledgerService,
		Tx:     dbClient,
		Outbox: emitter,
		Logger: logg,
	})
	requireResource(ctx, logg, "subscription service", err)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(gormDB),
		Tx:     dbClient,
		Outbox: emitter,
		Logger: logg,
	})
	requireResource(ctx, logg, "order service", err)

	pendingJob, err := cron.NewPendingOrderTimeoutJob(cron.PendingOrderTimeoutJobParams{
		Logger: logg,
		Orders: orderService,
		TTL:    cfg.Billing.PendingOrderTTL,
	})
	requireResource(ctx, logg, "pending order job", err)

	expiryJob, err := cron.NewSubscriptionExpiryJob(cron.SubscriptionExpiryJobParams{
		Logger:        logg,
		Subscriptions: subscriptionService,
	})
	requireResource(ctx, logg, "subscription expiry job", err)

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    logg,
		Outbox:    outboxRepo,
		Retention: cfg.Cron.OutboxRetention,
	})
	requireResource(ctx, logg, "outbox retention job", err)

	registry, err := cron.NewRegistry(pendingJob, expiryJob, retentionJob)
	requireResource(ctx, logg, "cron registry", err)

	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), cfg.Cron.LockTTL)
	requireResource(ctx, logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	requireResource(ctx, logg, "cron service", err)

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics endpoint failed", err)
		}
	}()

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockNameFormat, env)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
