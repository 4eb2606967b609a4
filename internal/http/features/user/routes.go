package user

import (
	"github.com/go-chi/chi/v5"

	"github.com/tendant/vfense-accounts/internal/http/middleware"
	"github.com/tendant/vfense-accounts/pkg/domain"
)

// RegisterRoutes registers user routes. Callers must already be authenticated.
// A user may always read and edit their own account.
func (h *Handler) RegisterRoutes(r chi.Router) {
	admin := middleware.RequirePermission(h.gate, domain.PermissionAdministrator, h.logger)
	adminOrSelf := middleware.RequirePermissionOrSelf(h.gate, domain.PermissionAdministrator, "name", h.logger)

	r.With(adminOrSelf).Get("/user/{name}", h.Get)
	r.With(adminOrSelf).Put("/user/{name}", h.Edit)
	r.With(admin).Post("/user/{name}", h.Modify)
	r.With(admin).Delete("/user/{name}", h.Delete)

	r.Group(func(r chi.Router) {
		r.Use(admin)
		r.Get("/users", h.List)
		r.Post("/users", h.Create)
		r.Delete("/users", h.DeleteBatch)
	})
}
