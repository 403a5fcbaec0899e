package controllers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/sugarcraft/academy-backend/api/responses"
	"github.com/sugarcraft/academy-backend/api/validators"
	"github.com/sugarcraft/academy-backend/internal/remediation"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
	"github.com/sugarcraft/academy-backend/pkg/logger"
)

type accountFixer interface {
	FixMissingAccounts(ctx context.Context, dryRun bool) (remediation.Report, error)
}

type adminFixRequest struct {
	AdminKey string `json:"adminKey" validate:"required"`
}

// FixMissingClerkAccounts runs the account backfill behind a shared admin
// secret. ?dryRun=1 reports orphans without touching anything.
func FixMissingClerkAccounts(svc accountFixer, adminKey string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "remediation service unavailable"))
			return
		}
		if adminKey == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "remediation endpoint disabled"))
			return
		}

		var payload adminFixRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if subtle.ConstantTimeCompare([]byte(payload.AdminKey), []byte(adminKey)) != 1 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "invalid admin key"))
			return
		}

		dryRun := isTruthy(r.URL.Query().Get("dryRun"))
		report, err := svc.FixMissingAccounts(ctx, dryRun)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func isTruthy(value string) bool {
	switch value {
	case "1", "true", "yes":
		return true
	}
	return false
}
