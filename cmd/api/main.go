package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sugarcraft/academy-backend/api/routes"
	"github.com/sugarcraft/academy-backend/internal/catalog"
	checkoutsvc "github.com/sugarcraft/academy-backend/internal/checkout"
	"github.com/sugarcraft/academy-backend/internal/entitlements"
	"github.com/sugarcraft/academy-backend/internal/identity"
	"github.com/sugarcraft/academy-backend/internal/mailer"
	"github.com/sugarcraft/academy-backend/internal/remediation"
	"github.com/sugarcraft/academy-backend/internal/signup"
	stripewebhook "github.com/sugarcraft/academy-backend/internal/webhooks/stripe"
	"github.com/sugarcraft/academy-backend/pkg/config"
	"github.com/sugarcraft/academy-backend/pkg/logger"
	"github.com/sugarcraft/academy-backend/pkg/metrics"
	"github.com/sugarcraft/academy-backend/pkg/redis"
	"github.com/sugarcraft/academy-backend/pkg/security"
	"github.com/sugarcraft/academy-backend/pkg/stripeclient"
)

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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripeclient.New(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	directory, err := identity.NewClerkDirectory(cfg.Clerk.SecretKey)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap clerk", err)
		os.Exit(1)
	}

	catalogClient, err := catalog.New(cfg.Strapi)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap catalog", err)
		os.Exit(1)
	}

	pendingStore, err := signup.NewStore(redisClient, cfg.Signup.PendingTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create pending signup store", err)
		os.Exit(1)
	}

	// The metadata cipher only decrypts legacy sessions; new checkouts keep
	// secrets out of provider metadata entirely.
	var metadataCipher *security.Cipher
	if cfg.Signup.MetadataKey != "" {
		metadataCipher, err = security.NewCipher(cfg.Signup.MetadataKey)
		if err != nil {
			logg.Error(context.Background(), "invalid signup metadata key", err)
			os.Exit(1)
		}
	}

	mail := mailer.New(cfg.Sendgrid, logg)
	if mail == nil {
		logg.Warn(context.Background(), "sendgrid not configured, welcome emails disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	guestCheckout, err := checkoutsvc.NewGuestService(checkoutsvc.GuestServiceParams{
		Directory: directory,
		Stripe:    checkoutsvc.NewStripeClient(stripeClient),
		Catalog:   catalogClient,
		Pending:   pendingStore,
		Checkout:  cfg.Checkout,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create guest checkout service", err)
		os.Exit(1)
	}

	memberCheckout, err := checkoutsvc.NewMemberService(checkoutsvc.MemberServiceParams{
		Directory: directory,
		Stripe:    checkoutsvc.NewStripeClient(stripeClient),
		Catalog:   catalogClient,
		Checkout:  cfg.Checkout,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create member checkout service", err)
		os.Exit(1)
	}

	entitlementsService, err := entitlements.NewService(entitlements.ServiceParams{
		Directory: directory,
		Stripe:    entitlements.NewStripeClient(stripeClient),
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlements service", err)
		os.Exit(1)
	}

	remediationService, err := remediation.NewService(remediation.ServiceParams{
		Directory: directory,
		Stripe:    remediation.NewStripeClient(stripeClient),
		Mailer:    mail,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create remediation service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Directory: directory,
		Stripe:    stripewebhook.NewStripeClient(stripeClient),
		Pending:   pendingStore,
		Decrypter: metadataCipher,
		Mailer:    mail,
		Metrics:   webhookMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			redisClient,
			stripeClient,
			guestCheckout,
			memberCheckout,
			entitlementsService,
			catalogClient,
			remediationService,
			webhookService,
			webhookGuard,
			webhookMetrics,
			registry,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
