package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// AdminValidator validates moderator bearer tokens.
type AdminValidator interface {
	ValidateToken(tokenString string) (*AdminClaims, error)
}

// AdminClaims carries the authenticated moderator identity.
type AdminClaims struct {
	Subject string
}

type contextKeyAdmin struct{}

// GetAdminSubject retrieves the authenticated moderator from the context.
func GetAdminSubject(ctx context.Context) string {
	subject, ok := ctx.Value(contextKeyAdmin{}).(string)
	if !ok {
		return ""
	}
	return subject
}

// RequireAdmin guards moderation endpoints with a bearer token check.
func RequireAdmin(validator AdminValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", chimiddleware.GetReqID(ctx),
				)
				unauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", chimiddleware.GetReqID(ctx),
				)
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, contextKeyAdmin{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
