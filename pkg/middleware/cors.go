package middleware

import (
	"net/http"

	"workhub-backend/pkg/config"

	"github.com/go-chi/cors"
)

// CORS builds the CORS middleware from configuration.
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodPatch,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
			"X-Requested-With",
			"Cache-Control",
		},
		ExposedHeaders: []string{
			"Link",
			"X-Total-Count",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}

	// Development allows any origin; credentials must be off with a wildcard.
	if cfg.IsDevelopment() {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
	}

	if len(cfg.AllowedOrigins) > 0 && cfg.AllowedOrigins[0] != "*" {
		corsOptions.AllowedOrigins = cfg.AllowedOrigins
		corsOptions.AllowCredentials = true
	}

	return cors.Handler(corsOptions)
}
