package middleware

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"workhub-backend/pkg/config"
	"workhub-backend/pkg/models"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger returns the request logging middleware. Actor emails appear only in
// redacted form; invitation tokens never pass through a URL and must not be
// added to log lines elsewhere either.
func Logger(cfg *config.Config) func(http.Handler) http.Handler {
	if cfg.IsProduction() {
		return structuredLogger
	}
	return middleware.Logger
}

// logOutput is swapped for a buffer in tests.
var logOutput io.Writer = os.Stdout

// structuredLogger emits one JSON line per request.
func structuredLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		userInfo := "anonymous"
		if user, ok := GetUserFromContext(r.Context()); ok && user != nil {
			userInfo = models.RedactEmail(user.Email)
		}

		fmt.Fprintf(logOutput, `{"time":"%s","method":"%s","path":"%s","status":%d,"duration":"%s","user":"%s","ip":"%s"}`+"\n",
			time.Now().Format(time.RFC3339),
			r.Method,
			r.URL.Path,
			ww.Status(),
			time.Since(start),
			userInfo,
			getClientIP(r),
		)
	})
}

// getClientIP prefers forwarding headers set by the proxy layer.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
