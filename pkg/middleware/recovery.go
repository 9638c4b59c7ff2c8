package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"workhub-backend/pkg/config"
	"workhub-backend/pkg/utils"
)

// Recovery converts panics into 500 responses. Stack traces go to the log in
// every environment but reach the response body only in development.
func Recovery(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					stack := debug.Stack()
					fmt.Printf("[error] panic: %v\n%s\n", err, stack)

					if cfg.IsDevelopment() {
						utils.WriteErrorResponseWithCode(w, http.StatusInternalServerError,
							"INTERNAL_SERVER_ERROR",
							fmt.Sprintf("Internal server error: %v", err),
							string(stack))
					} else {
						utils.WriteInternalServerErrorResponse(w, "Internal server error occurred")
					}
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
