package http

import (
	"log/slog"
	"net/http"

	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
	"github.com/tmanjupriya-lang/inventory-management/pkg/httputil"
	"github.com/tmanjupriya-lang/inventory-management/pkg/middleware"
)

// requireCapability lets the request through only if the authenticated
// role holds c. It runs before any handler touches the store.
func requireCapability(c domain.Capability, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := middleware.IdentityFromContext(r.Context())
			if !ok {
				httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), logger)
				return
			}
			if err := domain.Authorize(id.Role, c); err != nil {
				logger.WarnContext(r.Context(), "permission denied",
					slog.String("user_id", id.UserID),
					slog.String("role", id.Role),
					slog.String("capability", string(c)),
				)
				httputil.WriteError(w, r, err, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// identity returns the caller set by the Auth middleware. Routes using it
// are always mounted behind Auth.
func identity(r *http.Request) middleware.Identity {
	id, _ := middleware.IdentityFromContext(r.Context())
	return id
}
