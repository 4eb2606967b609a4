package group

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/vfense-accounts/internal/http/features/common"
	"github.com/tendant/vfense-accounts/internal/http/middleware"
	"github.com/tendant/vfense-accounts/internal/httputil"
	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/auth"
)

// Handler handles permission group endpoints.
type Handler struct {
	logger *slog.Logger
	groups *account.GroupService
	users  *account.UserService
	gate   *auth.PermissionGate
}

// NewHandler creates a new group handler.
func NewHandler(logger *slog.Logger, groups *account.GroupService, users *account.UserService, gate *auth.PermissionGate) *Handler {
	return &Handler{logger: logger, groups: groups, users: users, gate: gate}
}

// CreateRequest represents a group creation request.
type CreateRequest struct {
	Name            string          `json:"group_name"`
	CustomerContext string          `json:"customer_context"`
	Permissions     common.NameList `json:"permissions"`
}

// List returns the groups of a customer, by default the caller's current one.
// GET /api/v1/groups?customer_context=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rb := common.Builder(r)

	customerName, err := h.customerContext(r, r.URL.Query().Get(middleware.CustomerContextParam))
	if err != nil {
		h.logger.Error("request failed", "object", "groups", "error", err)
		httputil.WriteResult(w, rb.SomethingBroke("groups"))
		return
	}

	groups, err := h.groups.List(r.Context(), customerName)
	if err != nil {
		h.logger.Error("request failed", "object", "groups", "customer", customerName, "error", err)
		httputil.WriteResult(w, rb.SomethingBroke("groups"))
		return
	}
	data := make([]any, 0, len(groups))
	for i := range groups {
		data = append(data, groups[i])
	}
	httputil.WriteResult(w, rb.Retrieved(data...))
}

// Create creates a group in a customer.
// POST /api/v1/groups
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !common.Decode(w, r, &req) {
		return
	}
	rb := common.Builder(r)

	customerName, err := h.customerContext(r, req.CustomerContext)
	if err != nil {
		h.logger.Error("request failed", "object", "group", "error", err)
		httputil.WriteResult(w, rb.SomethingBroke("group"))
		return
	}

	httputil.WriteResult(w, h.groups.Create(r.Context(), rb.Meta(), req.Name, customerName, req.Permissions))
}

// Delete removes a group without members.
// DELETE /api/v1/group/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	httputil.WriteResult(w, h.groups.Remove(r.Context(), common.Meta(r), chi.URLParam(r, "id")))
}

func (h *Handler) customerContext(r *http.Request, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	caller, err := h.users.Get(r.Context(), common.Caller(r))
	if err != nil {
		return "", err
	}
	return caller.CurrentCustomer, nil
}
