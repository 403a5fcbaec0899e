package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sugarcraft/academy-backend/api/controllers"
	webhookcontrollers "github.com/sugarcraft/academy-backend/api/controllers/webhooks"
	"github.com/sugarcraft/academy-backend/api/middleware"
	"github.com/sugarcraft/academy-backend/internal/catalog"
	checkoutsvc "github.com/sugarcraft/academy-backend/internal/checkout"
	"github.com/sugarcraft/academy-backend/internal/entitlements"
	"github.com/sugarcraft/academy-backend/internal/remediation"
	stripewebhook "github.com/sugarcraft/academy-backend/internal/webhooks/stripe"
	"github.com/sugarcraft/academy-backend/pkg/config"
	"github.com/sugarcraft/academy-backend/pkg/logger"
	"github.com/sugarcraft/academy-backend/pkg/metrics"
	"github.com/sugarcraft/academy-backend/pkg/redis"
	"github.com/sugarcraft/academy-backend/pkg/stripeclient"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	stripeClient *stripeclient.Client,
	guestCheckout *checkoutsvc.GuestService,
	memberCheckout *checkoutsvc.MemberService,
	entitlementsService *entitlements.Service,
	catalogClient *catalog.Client,
	remediationService *remediation.Service,
	webhookService *stripewebhook.Service,
	webhookGuard *stripewebhook.IdempotencyGuard,
	webhookMetrics *metrics.WebhookMetrics,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	guestPolicy := middleware.NewCheckoutRateLimitPolicy(
		"guest-checkout",
		cfg.RateLimit.GuestWindow,
		cfg.RateLimit.GuestIPLimit,
		cfg.RateLimit.GuestEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, redisClient, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.CheckoutRateLimit(guestPolicy, redisClient, logg)).
			Post("/guest-checkout", controllers.GuestCheckout(guestCheckout, webhookMetrics, logg))

		r.Post("/stripe-webhook", webhookcontrollers.StripeWebhook(webhookService, stripeClient, webhookGuard, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.ClerkAuth(logg))
			r.Post("/checkout", controllers.Checkout(memberCheckout, webhookMetrics, logg))
			r.Post("/subscription-checkout", controllers.SubscriptionCheckout(memberCheckout, webhookMetrics, logg))
			r.Get("/download-ebook", controllers.DownloadEbook(entitlementsService, catalogClient, cfg.Download, logg))
		})

		r.Post("/admin/fix-missing-clerk-accounts", controllers.FixMissingClerkAccounts(remediationService, cfg.Admin.Key, logg))
	})

	return r
}
