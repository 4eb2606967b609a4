package me

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/vfense-accounts/internal/http/features/common"
	"github.com/tendant/vfense-accounts/internal/http/middleware"
	"github.com/tendant/vfense-accounts/internal/httputil"
	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

// Handler handles the caller's own profile.
type Handler struct {
	logger *slog.Logger
	users  *account.UserService
	gate   *auth.PermissionGate
}

// NewHandler creates a new me handler.
func NewHandler(logger *slog.Logger, users *account.UserService, gate *auth.PermissionGate) *Handler {
	return &Handler{logger: logger, users: users, gate: gate}
}

// Profile is the caller's account as seen from one customer.
type Profile struct {
	*domain.User
	Customer    string              `json:"customer"`
	Customers   []string            `json:"customers"`
	Groups      []domain.Group      `json:"groups"`
	Permissions []domain.Permission `json:"permissions"`
}

// RegisterRoutes registers the profile route. Callers must already be authenticated.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.GetMe)
}

// GetMe returns the caller's profile in their current customer, or in the
// customer named by ?customer_context=.
// GET /api/v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	rb := common.Builder(r)
	username := common.Caller(r)

	u, err := h.users.Get(r.Context(), username)
	if errors.Is(err, domain.ErrUserNotFound) {
		httputil.WriteResult(w, rb.InvalidID(username, "user", result.UserNameDoesNotExist))
		return
	}
	if err != nil {
		h.broke(w, rb, err)
		return
	}

	customers, err := h.users.Customers(r.Context(), username)
	if err != nil {
		h.broke(w, rb, err)
		return
	}

	scope := r.URL.Query().Get(middleware.CustomerContextParam)
	if scope == "" {
		scope = u.CurrentCustomer
	}
	if !contains(customers, scope) {
		httputil.WriteResult(w, rb.InvalidID(scope, "customer", result.InvalidCustomerName))
		return
	}

	groups, err := h.users.Groups(r.Context(), username, scope)
	if err != nil {
		h.broke(w, rb, err)
		return
	}
	perms, err := h.gate.Permissions(r.Context(), username, scope)
	if err != nil {
		h.broke(w, rb, err)
		return
	}

	p := Profile{
		User:        u,
		Customer:    scope,
		Customers:   customers,
		Groups:      groups,
		Permissions: perms,
	}
	if p.Customers == nil {
		p.Customers = []string{}
	}
	if p.Groups == nil {
		p.Groups = []domain.Group{}
	}
	if p.Permissions == nil {
		p.Permissions = []domain.Permission{}
	}
	httputil.WriteResult(w, rb.Retrieved(p))
}

func (h *Handler) broke(w http.ResponseWriter, rb *result.Builder, err error) {
	meta := rb.Meta()
	h.logger.Error("request failed", "object", "user", "user", meta.Username, "uri", meta.URI, "error", err)
	httputil.WriteResult(w, rb.SomethingBroke("user"))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
