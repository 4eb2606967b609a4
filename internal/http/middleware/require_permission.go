package middleware

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/vfense-accounts/internal/httputil"
	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

// CustomerContextParam is the query parameter naming the customer a request acts in.
const CustomerContextParam = "customer_context"

// RequirePermission enforces a capability through the permission gate.
// This middleware should be applied AFTER the Auth middleware. The scope is
// the customer_context query parameter, or the caller's current customer.
//
// Example usage:
//
//	r.With(middleware.Auth(tokens)).
//	  With(middleware.RequirePermission(gate, domain.PermissionAdministrator, logger)).
//	  Delete("/customer/{name}", customerHandler.Delete)
func RequirePermission(gate *auth.PermissionGate, perm domain.Permission, logger *slog.Logger) func(http.Handler) http.Handler {
	return requirePermission(gate, perm, "", logger)
}

// RequirePermissionOrSelf is RequirePermission, except that a caller whose
// username equals the URL parameter param is always let through.
func RequirePermissionOrSelf(gate *auth.PermissionGate, perm domain.Permission, param string, logger *slog.Logger) func(http.Handler) http.Handler {
	return requirePermission(gate, perm, param, logger)
}

func requirePermission(gate *auth.PermissionGate, perm domain.Permission, selfParam string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get username from context (set by Auth middleware)
			username, ok := GetUsername(r.Context())
			if !ok {
				unauthenticated(w, r, "authentication required")
				return
			}

			if selfParam != "" && chi.URLParam(r, selfParam) == username {
				next.ServeHTTP(w, r)
				return
			}

			rb := result.New(httputil.Meta(r, username))
			scope := r.URL.Query().Get(CustomerContextParam)
			granted, code, err := gate.Verify(r.Context(), username, perm, scope)
			if err != nil {
				if logger != nil {
					logger.Error("permission check failed",
						"user", username,
						"permission", perm,
						"customer", scope,
						"error", err,
					)
				}
				httputil.WriteResult(w, rb.SomethingBroke("permission"))
				return
			}
			if !granted {
				httputil.WriteResult(w, rb.Forbidden(string(perm), code))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
