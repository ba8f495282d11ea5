package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/reviewcash/backend/internal/auth"
)

type contextKey string

const ctxAdminKey contextKey = "admin"

// TokenVerifier resolves an admin token to its identity.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AdminAuth accepts the capability token from the token query parameter or
// a Bearer Authorization header. Missing and expired tokens get 401, any
// other failure 403. On success the admin identity is set in the context.
func AdminAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := tokens.Verify(TokenFromRequest(r))
			if err != nil {
				status, msg := authFailure(err)
				writeError(w, status, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), identity)))
		})
	}
}

func authFailure(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrTokenMissing):
		return http.StatusUnauthorized, "missing admin token"
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "admin token expired"
	default:
		return http.StatusForbidden, "forbidden"
	}
}

// TokenFromRequest prefers the query parameter used by console links.
func TokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	return extractBearer(r)
}

// AdminFromCtx returns the authenticated admin identity or "".
func AdminFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxAdminKey).(string)
	return id
}

// WithAdmin returns a context carrying the given admin identity.
func WithAdmin(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, ctxAdminKey, identity)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
