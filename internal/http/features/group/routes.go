package group

import (
	"github.com/go-chi/chi/v5"

	"github.com/tendant/vfense-accounts/internal/http/middleware"
	"github.com/tendant/vfense-accounts/pkg/domain"
)

// RegisterRoutes registers group routes. Callers must already be authenticated.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(h.gate, domain.PermissionAdministrator, h.logger))
		r.Get("/groups", h.List)
		r.Post("/groups", h.Create)
		r.Delete("/group/{id}", h.Delete)
	})
}
