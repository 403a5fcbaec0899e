package controllers

import (
	"context"
	"net/http"

	"github.com/sugarcraft/academy-backend/api/responses"
	"github.com/sugarcraft/academy-backend/api/validators"
	checkoutsvc "github.com/sugarcraft/academy-backend/internal/checkout"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
	"github.com/sugarcraft/academy-backend/pkg/logger"
	"github.com/sugarcraft/academy-backend/pkg/metrics"
)

type guestCheckoutService interface {
	Start(ctx context.Context, req checkoutsvc.GuestRequest) (*checkoutsvc.Session, error)
}

// GuestCheckout opens a subscription checkout for a visitor without an
// account. The account itself is created later by the completion webhook.
func GuestCheckout(svc guestCheckoutService, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutsvc.GuestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Start(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		m.IncSession("guest")
		responses.WriteSuccess(w, session)
	}
}
