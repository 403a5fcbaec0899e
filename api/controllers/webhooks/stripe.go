package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/sugarcraft/academy-backend/pkg/logger"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook verifies and processes billing events. Only signature
// failures produce an error status; once the payload is authenticated the
// endpoint always acknowledges with 200 so Stripe stops redelivering, and
// handler failures are logged for remediation instead.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || client == nil || guard == nil {
			writeWebhookError(w, http.StatusInternalServerError, "webhook endpoint unavailable")
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			writeWebhookError(w, http.StatusBadRequest, "unreadable payload")
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			if logg != nil {
				logg.Warn(ctx, "stripe webhook signature verification failed")
			}
			writeWebhookError(w, http.StatusBadRequest, "invalid signature")
			return
		}
		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID)
		}

		duplicate, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			// Without the guard a redelivery could double-process; better to
			// let Stripe retry once Redis is back.
			if logg != nil {
				logg.Error(ctx, "idempotency check failed", err)
			}
			writeWebhookError(w, http.StatusInternalServerError, "temporarily unavailable")
			return
		}
		if duplicate {
			if logg != nil {
				logg.Info(ctx, "duplicate stripe event skipped")
			}
			writeReceived(w)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			// Release the event id so the next delivery can retry, then
			// acknowledge anyway: bouncing the delivery would only make
			// Stripe hammer an endpoint that already logged the failure.
			if delErr := guard.Delete(ctx, event.ID); delErr != nil && logg != nil {
				logg.Error(ctx, "release idempotency key", delErr)
			}
			if logg != nil {
				logg.Error(ctx, "stripe event processing failed", err)
			}
			writeReceived(w)
			return
		}

		if logg != nil {
			logg.Info(ctx, "stripe event processed")
		}
		writeReceived(w)
	}
}

func writeReceived(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

func writeWebhookError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
