// Package middleware provides HTTP middleware for the API surface.
// Authentication here is deliberately narrow: it resolves a bearer
// token to an owner identity and nothing more.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bioshelf/bioshelf/internal/models"
	"github.com/bioshelf/bioshelf/internal/repository"
	"github.com/bioshelf/bioshelf/internal/utils"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the authenticated user placed in the request
// context by TokenAuth.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok
}

// WithUser returns a context carrying the given user. Exposed for
// handler tests that bypass the middleware.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// TokenAuth authenticates requests via an API token in the
// Authorization header ("Bearer <token>" or "Token <token>"). The
// token's SHA-256 hash is looked up; on a match the owning user is
// placed in the request context.
func TokenAuth(users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				unauthorized(w, "Authentication required")
				return
			}

			if !utils.ValidateAPITokenFormat(token) {
				unauthorized(w, "Invalid token")
				return
			}

			user, err := users.GetUserByTokenHash(r.Context(), utils.HashAPIToken(token))
			if err != nil {
				slog.Error("failed to resolve API token", "error", err)
				internalError(w)
				return
			}
			if user == nil {
				unauthorized(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// extractToken pulls the API token out of the Authorization header.
func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	for _, scheme := range []string{"Bearer ", "Token "} {
		if strings.HasPrefix(auth, scheme) {
			return strings.TrimSpace(strings.TrimPrefix(auth, scheme))
		}
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(models.ErrorResponse{ //nolint:errcheck // response already committed
		Error: msg,
		Code:  "UNAUTHORIZED",
	})
}

func internalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(models.ErrorResponse{ //nolint:errcheck // response already committed
		Error: "Internal server error",
		Code:  "INTERNAL_ERROR",
	})
}
