package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",             // local dev
	"https://sugarcraftacademy.com",     // storefront
	"https://www.sugarcraftacademy.com", // storefront www
	"https://sugarcraft-academy.vercel.app",
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   defaultCORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
