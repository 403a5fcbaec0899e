package middleware

import (
	"context"
	"net/http"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"

	"github.com/sugarcraft/academy-backend/api/responses"
	pkgerrors "github.com/sugarcraft/academy-backend/pkg/errors"
	"github.com/sugarcraft/academy-backend/pkg/logger"
)

type userIDKey struct{}

// ClerkAuth verifies the Clerk session token and stores the authenticated
// user id in the request context.
func ClerkAuth(logg *logger.Logger) func(http.Handler) http.Handler {
	verify := clerkhttp.WithHeaderAuthorization()
	return func(next http.Handler) http.Handler {
		return verify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims, ok := clerk.SessionClaimsFromContext(ctx)
			if !ok || claims.Subject == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session required"))
				return
			}
			ctx = context.WithValue(ctx, userIDKey{}, claims.Subject)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.Subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		}))
	}
}

// UserIDFromContext returns the authenticated Clerk user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}

// WithUserID is used by handler tests to seed an authenticated context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}
