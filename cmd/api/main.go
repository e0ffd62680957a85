package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/YeLlowseaG/clientseeker/api/routes"
	"github.com/YeLlowseaG/clientseeker/internal/catalog"
	checkoutsvc "github.com/YeLlowseaG/clientseeker/internal/checkout"
	"github.com/YeLlowseaG/clientseeker/internal/geo"
	"github.com/YeLlowseaG/clientseeker/internal/ledger"
	"github.com/YeLlowseaG/clientseeker/internal/orders"
	"github.com/YeLlowseaG/clientseeker/internal/payments"
	"github.com/YeLlowseaG/clientseeker/internal/subscriptions"
	"github.com/YeLlowseaG/clientseeker/internal/users"
	stripewebhook "github.com/YeLlowseaG/clientseeker/internal/webhooks/stripe"
	"github.com/YeLlowseaG/clientseeker/pkg/config"
	"github.com/YeLlowseaG/clientseeker/pkg/db"
	"github.com/YeLlowseaG/clientseeker/pkg/geoip"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
	"github.com/YeLlowseaG/clientseeker/pkg/metrics"
	"github.com/YeLlowseaG/clientseeker/pkg/migrate"
	"github.com/YeLlowseaG/clientseeker/pkg/outbox"
	"github.com/YeLlowseaG/clientseeker/pkg/paypal"
	"github.com/YeLlowseaG/clientseeker/pkg/redis"
	pkgstripe "github.com/YeLlowseaG/clientseeker/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	productCatalog, err := catalog.New(cfg.Catalog.Path, logg)
	requireResource(ctx, logg, "product catalog", err)

	numbers, err := orders.NewNumberGenerator(cfg.Billing.SnowflakeNode)
	requireResource(ctx, logg, "order numbers", err)

	gormDB := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)
	userRepo := users.NewRepository(gormDB)
	orderRepo := orders.NewRepository(gormDB)
	subRepo := subscriptions.NewRepository(gormDB)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:    ledger.NewRepository(gormDB),
		Users:   userRepo,
		Tx:      dbClient,
		Usage:   subscriptions.NewUsageRecorder(subRepo),
		Outbox:  emitter,
		Metrics: paymentMetrics,
		Logger:  logg,
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
		Repo:   orderRepo,
		Tx:     dbClient,
		Outbox: emitter,
		Logger: logg,
	})
	requireResource(ctx, logg, "order service", err)

	paypalClient, err := paypal.NewClient(ctx, cfg.PayPal, logg)
	requireResource(ctx, logg, "paypal", err)

	providers := []payments.Provider{payments.NewPayPalProvider(paypalClient)}
	gateways := []checkoutsvc.Gateway{checkoutsvc.NewPayPalGateway(paypalClient)}

	// Stripe is optional; without credentials the webhook route answers 500.
	var stripeClient *pkgstripe.Client
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		requireResource(ctx, logg, "stripe", err)
		providers = append(providers, payments.NewStripeProvider(stripeClient))
		gateways = append(gateways, checkoutsvc.NewStripeGateway(stripeClient))
	} else {
		logg.Warn(ctx, "stripe not configured; card checkout disabled")
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Orders:        orderRepo,
		Users:         userRepo,
		Subscriptions: subscriptionService,
		Ledger:        ledgerService,
		Tx:            dbClient,
		Outbox:        emitter,
		Providers:     providers,
		Metrics:       paymentMetrics,
		Logger:        logg,
		MaxAttempts:   cfg.Billing.CaptureMaxAttempts,
		RetryBackoff:  cfg.Billing.CaptureRetryBackoff,
	})
	requireResource(ctx, logg, "payment service", err)

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Catalog:   productCatalog,
		Users:     userRepo,
		Orders:    orderRepo,
		Numbers:   numbers,
		Gateways:  gateways,
		PublicURL: cfg.App.PublicURL,
		Logger:    logg,
	})
	requireResource(ctx, logg, "checkout service", err)

	geoService, err := geo.NewService(redisClient, geoip.NewClient(
		geoip.WithBaseURL(cfg.Geo.BaseURL),
		geoip.WithTimeout(cfg.Geo.Timeout),
	), cfg.Geo.CacheTTL, logg)
	requireResource(ctx, logg, "geo service", err)

	routeDeps := routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Cache:         redisClient,
		Metrics:       registry,
		HTTPMetrics:   metrics.NewHTTPMetrics(registry),
		Payments:      paymentService,
		Subscriptions: subscriptionService,
		Ledger:        ledgerService,
		Orders:        orderService,
		Checkout:      checkoutService,
		Catalog:       productCatalog,
		Geo:           geoService,
	}
	if stripeClient != nil {
		webhookService, err := stripewebhook.NewService(paymentService, logg)
		requireResource(ctx, logg, "stripe webhook service", err)
		guard, err := stripewebhook.NewEventGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, stripewebhook.DefaultScope)
		requireResource(ctx, logg, "stripe webhook guard", err)
		routeDeps.StripeClient = stripeClient
		routeDeps.StripeWebhook = webhookService
		routeDeps.StripeGuard = guard
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithField(ctx, "addr", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(routeDeps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
	}
	logg.Info(ctx, "api server stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
