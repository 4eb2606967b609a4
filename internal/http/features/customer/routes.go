package customer

import (
	"github.com/go-chi/chi/v5"

	"github.com/tendant/vfense-accounts/internal/http/middleware"
	"github.com/tendant/vfense-accounts/pkg/domain"
)

// RegisterRoutes registers customer routes. Callers must already be authenticated.
func (h *Handler) RegisterRoutes(r chi.Router) {
	admin := middleware.RequirePermission(h.gate, domain.PermissionAdministrator, h.logger)

	r.Get("/customers", h.List)
	r.With(admin).Post("/customers", h.Create)
	r.With(admin).Delete("/customers", h.DeleteBatch)

	r.Group(func(r chi.Router) {
		r.Use(admin, h.requireTargetAdmin)
		r.Get("/customer/{name}", h.Get)
		r.Post("/customer/{name}", h.Members)
		r.Put("/customer/{name}", h.Edit)
		r.Delete("/customer/{name}", h.Delete)
	})
}
