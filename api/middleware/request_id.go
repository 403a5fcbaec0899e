package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sugarcraft/academy-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags each request with an id, honoring one sent by the
// storefront so a checkout attempt can be traced across both services. The
// id is echoed in the response header and attached to the request logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, reqID)

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
