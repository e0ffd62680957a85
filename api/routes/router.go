package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v84"

	"github.com/YeLlowseaG/clientseeker/api/controllers"
	webhookcontrollers "github.com/YeLlowseaG/clientseeker/api/controllers/webhooks"
	"github.com/YeLlowseaG/clientseeker/api/middleware"
	"github.com/YeLlowseaG/clientseeker/internal/catalog"
	checkoutsvc "github.com/YeLlowseaG/clientseeker/internal/checkout"
	"github.com/YeLlowseaG/clientseeker/internal/ledger"
	"github.com/YeLlowseaG/clientseeker/internal/orders"
	"github.com/YeLlowseaG/clientseeker/internal/payments"
	"github.com/YeLlowseaG/clientseeker/internal/subscriptions"
	"github.com/YeLlowseaG/clientseeker/pkg/config"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	"github.com/YeLlowseaG/clientseeker/pkg/geoip"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
	"github.com/YeLlowseaG/clientseeker/pkg/metrics"
	pkgredis "github.com/YeLlowseaG/clientseeker/pkg/redis"
)

// Cache is the Redis surface the HTTP layer needs.
type Cache interface {
	pkgredis.IdempotencyStore
	Ping(ctx context.Context) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type Catalog interface {
	List() []catalog.Product
	Reload(ctx context.Context) (int, error)
}

type Locator interface {
	Locate(ctx context.Context, ip string) (*geoip.Location, error)
}

type StripeWebhookGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type StripeSigner interface {
	SigningSecret() string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      Pinger
	Cache   Cache
	Metrics prometheus.Gatherer
	// HTTPMetrics is optional; nil disables request histograms.
	HTTPMetrics *metrics.HTTPMetrics

	Payments      payments.Service
	Subscriptions subscriptions.Service
	Ledger        ledger.Service
	Orders        orders.Service
	Checkout      checkoutsvc.Service
	Catalog       Catalog
	Geo           Locator

	StripeClient  StripeSigner
	StripeWebhook StripeWebhookService
	StripeGuard   StripeWebhookGuard
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	// Typed nils must not reach the middleware as non-nil interfaces.
	var (
		idem    pkgredis.IdempotencyStore
		limiter interface {
			FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error)
		}
		redisPing Pinger
	)
	if d.Cache != nil {
		idem, limiter, redisPing = d.Cache, d.Cache, d.Cache
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	capturePolicy := middleware.RateLimitPolicy{
		Name:   "capture",
		Limit:  cfg.Billing.CaptureRateLimit,
		Window: cfg.Billing.CaptureRateWindow,
	}
	idempotencyTTL := cfg.Eventing.RequestIdempotencyTTL

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, redisPing))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/products", controllers.PublicProducts(d.Catalog))
		r.Get("/geo", controllers.PublicGeo(d.Geo, logg))
		r.With(middleware.OptionalAuth(cfg.JWT, logg)).
			Post("/subscriptions/status", controllers.PublicSubscriptionStatus(d.Subscriptions, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(d.StripeWebhook, d.StripeClient, d.StripeGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idem, idempotencyTTL, logg))

		r.With(middleware.RateLimit(capturePolicy, limiter, logg)).
			Post("/payments/capture", controllers.PaymentCapture(d.Payments, logg))
		r.Get("/subscriptions/status", controllers.SubscriptionStatus(d.Subscriptions, logg))
		r.Post("/checkout", controllers.Checkout(d.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(d.Orders, logg))
			r.Get("/{orderNo}", controllers.OrderDetail(d.Orders, logg))
		})
		r.Route("/credits", func(r chi.Router) {
			r.Get("/", controllers.CreditBalance(d.Ledger, logg))
			r.Get("/ledger", controllers.CreditLedger(d.Ledger, logg))
			r.Post("/consume", controllers.CreditConsume(d.Ledger, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
		r.Use(middleware.Idempotency(idem, idempotencyTTL, logg))
		r.Post("/credits/grant", controllers.AdminCreditGrant(d.Ledger, logg))
		r.Post("/catalog/reload", controllers.AdminCatalogReload(d.Catalog, logg))
	})

	return r
}
