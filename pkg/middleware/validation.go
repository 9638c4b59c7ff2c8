package middleware

import (
	"net/http"
	"strings"

	"workhub-backend/pkg/utils"
)

// ContentTypeJSON rejects mutating requests whose body is not JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				utils.WriteBadRequestResponse(w, "Content-Type header is required")
				return
			}
			if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
				utils.WriteBadRequestResponse(w, "Content-Type must be application/json")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// MaxBodySize caps the request body.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
