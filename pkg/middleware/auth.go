package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
	"github.com/tmanjupriya-lang/inventory-management/pkg/httputil"
	"github.com/tmanjupriya-lang/inventory-management/pkg/logger"
)

type contextKeyType string

const identityKey contextKeyType = "identity"

// Identity is the authenticated caller as asserted by a verified access token.
type Identity struct {
	UserID string
	Role   string
}

// TokenValidator verifies a bearer token and returns the caller's identity.
type TokenValidator func(ctx context.Context, token string) (*Identity, error)

// Auth rejects requests without a valid bearer token with 401 and stores the
// verified identity in the request context.
func Auth(validate TokenValidator, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("missing or malformed authorization header"), l)
				return
			}

			id, err := validate(r.Context(), token)
			if err != nil {
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid or expired token"), l)
				return
			}

			ctx := WithIdentity(r.Context(), *id)
			ctx = logger.WithIdentity(ctx, id.UserID, id.Role)
			reqLogger := logger.FromContext(ctx).With(
				slog.String("user_id", id.UserID),
				slog.String("role", id.Role),
			)
			ctx = logger.NewContext(ctx, reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by Auth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
