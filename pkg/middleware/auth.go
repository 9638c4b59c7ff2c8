package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"workhub-backend/pkg/config"
	"workhub-backend/pkg/models"
	"workhub-backend/pkg/utils"
)

// ContextKey is the type for request-context keys set by this package.
type ContextKey string

const (
	UserContextKey ContextKey = "user"
)

// AuthMiddleware resolves the verified actor from a Bearer token and stores
// it in the request context. Authentication (issuing credentials) happens
// upstream; here we only verify and extract the identity.
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				utils.WriteUnauthorizedResponse(w, "Invalid token")
				return
			}
			if claims.Type != "access" {
				utils.WriteUnauthorizedResponse(w, "Invalid token type")
				return
			}

			user := &models.User{
				ID:    claims.UserID,
				Email: claims.Email,
			}
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext returns the actor set by AuthMiddleware.
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}

// RequireUser returns the actor or an error when the request carries none.
func RequireUser(ctx context.Context) (*models.User, error) {
	user, ok := GetUserFromContext(ctx)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not authenticated")
	}
	return user, nil
}

// WithUser injects an actor into the context. Used by tests and by internal
// invocations that bypass the HTTP layer.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}
