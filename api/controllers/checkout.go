package controllers

import (
	"context"
	"net/http"

	"github.com/sugarcraft/academy-backend/api/middleware"
	"github.com/sugarcraft/academy-backend/api/responses"
	"github.com/sugarcraft/academy-backend/api/validators"
	checkoutsvc "github.com/sugarcraft/academy-backend/internal/checkout"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
	"github.com/sugarcraft/academy-backend/pkg/logger"
	"github.com/sugarcraft/academy-backend/pkg/metrics"
)

type memberCheckoutService interface {
	StartSubscription(ctx context.Context, userID, planID string) (*checkoutsvc.Session, error)
	StartPurchase(ctx context.Context, userID, priceID string, quantity int64) (*checkoutsvc.Session, error)
}

type purchaseRequest struct {
	PriceID  string `json:"priceId" validate:"required"`
	Quantity int64  `json:"quantity" validate:"omitempty,min=1,max=10"`
}

type subscriptionRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

// Checkout opens a one-time payment session for a logged-in member.
func Checkout(svc memberCheckoutService, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session required"))
			return
		}

		var payload purchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.StartPurchase(r.Context(), userID, payload.PriceID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		m.IncSession("member_purchase")
		responses.WriteSuccess(w, session)
	}
}

// SubscriptionCheckout opens a subscription session for a logged-in member.
func SubscriptionCheckout(svc memberCheckoutService, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session required"))
			return
		}

		var payload subscriptionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.StartSubscription(r.Context(), userID, payload.PlanID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		m.IncSession("member_subscription")
		responses.WriteSuccess(w, session)
	}
}
