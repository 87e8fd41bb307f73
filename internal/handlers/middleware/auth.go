package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/bankcards/internal/handlers/render"
	"github.com/nkiryanov/bankcards/internal/handlers/userctx"
	"github.com/nkiryanov/bankcards/internal/models"
)

type authService interface {
	Auth(ctx context.Context, r *http.Request) (models.User, error)
}

// AuthMiddleware puts authenticated user to request context or responds 401
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.Auth(r.Context(), r)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole has to be used after AuthMiddleware
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userctx.FromContext(r.Context())
			switch {
			case !ok:
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			case user.Role != role:
				render.ServiceError(w, "Forbidden", http.StatusForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
