package user

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/vfense-accounts/internal/http/features/common"
	"github.com/tendant/vfense-accounts/internal/httputil"
	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

// Handler handles user endpoints.
type Handler struct {
	logger    *slog.Logger
	users     *account.UserService
	customers *account.CustomerService
	gate      *auth.PermissionGate
}

// NewHandler creates a new user handler.
func NewHandler(
	logger *slog.Logger,
	users *account.UserService,
	customers *account.CustomerService,
	gate *auth.PermissionGate,
) *Handler {
	return &Handler{
		logger:    logger,
		users:     users,
		customers: customers,
		gate:      gate,
	}
}

// UserView is a user together with its customers and the groups it holds
// in its current customer.
type UserView struct {
	*domain.User
	Customers []string       `json:"customers"`
	Groups    []domain.Group `json:"groups"`
}

// CreateRequest represents a user creation request.
type CreateRequest struct {
	Username        string          `json:"username"`
	Password        string          `json:"password"`
	FullName        string          `json:"fullname"`
	Email           string          `json:"email"`
	GroupIDs        common.NameList `json:"group_ids"`
	CustomerNames   common.NameList `json:"customer_names"`
	CustomerContext string          `json:"customer_context"`
	Enabled         common.Flag     `json:"enabled"`
}

// ModifyRequest adds or removes group and customer memberships.
type ModifyRequest struct {
	Action          string          `json:"action"`
	GroupIDs        common.NameList `json:"group_ids"`
	CustomerNames   common.NameList `json:"customer_names"`
	CustomerContext string          `json:"customer_context"`
}

// EditRequest changes the password, the personal settings or the status of a user.
type EditRequest struct {
	Password        string  `json:"password"`
	NewPassword     string  `json:"new_password"`
	FullName        *string `json:"fullname,omitempty"`
	Email           *string `json:"email,omitempty"`
	CurrentCustomer *string `json:"current_customer,omitempty"`
	Enabled         string  `json:"enabled"`
}

// DeleteBatchRequest names the users to delete.
type DeleteBatchRequest struct {
	Usernames common.NameList `json:"usernames"`
}

// Get returns a user, or one of its properties.
// GET /api/v1/user/{name}?property=
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rb := common.Builder(r)
	username := chi.URLParam(r, "name")

	if key := r.URL.Query().Get("property"); key != "" {
		v, err := h.users.GetProperty(r.Context(), username, domain.UserKey(key))
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			httputil.WriteResult(w, rb.InvalidID(username, "user", result.UserNameDoesNotExist))
		case errors.Is(err, account.ErrUnknownProperty):
			httputil.WriteResult(w, rb.IncorrectArgs(err.Error()))
		case err != nil:
			h.broke(w, rb, err)
		default:
			httputil.WriteResult(w, rb.Retrieved(v))
		}
		return
	}

	u, err := h.users.Get(r.Context(), username)
	if errors.Is(err, domain.ErrUserNotFound) {
		httputil.WriteResult(w, rb.InvalidID(username, "user", result.UserNameDoesNotExist))
		return
	}
	if err != nil {
		h.broke(w, rb, err)
		return
	}

	view := UserView{User: u, Customers: []string{}, Groups: []domain.Group{}}
	customers, err := h.users.Customers(r.Context(), username)
	if err != nil {
		h.broke(w, rb, err)
		return
	}
	if customers != nil {
		view.Customers = customers
	}
	groups, err := h.users.Groups(r.Context(), username, u.CurrentCustomer)
	if err != nil {
		h.broke(w, rb, err)
		return
	}
	if groups != nil {
		view.Groups = groups
	}

	httputil.WriteResult(w, rb.Retrieved(view))
}

// Modify adds the user to, or removes it from, groups and customers.
// POST /api/v1/user/{name}
func (h *Handler) Modify(w http.ResponseWriter, r *http.Request) {
	var req ModifyRequest
	if !common.Decode(w, r, &req) {
		return
	}
	meta := common.Meta(r)
	rb := result.New(meta)
	username := chi.URLParam(r, "name")

	action := strings.ToLower(req.Action)
	if action == "" {
		action = "add"
	}
	if action != "add" && action != "delete" {
		httputil.WriteResult(w, rb.IncorrectArgs(fmt.Sprintf("unknown action %q, expected add or delete", req.Action)))
		return
	}
	if len(req.GroupIDs) == 0 && len(req.CustomerNames) == 0 {
		httputil.WriteResult(w, rb.IncorrectArgs("group_ids or customer_names are required"))
		return
	}

	var res *result.Result
	if len(req.GroupIDs) > 0 {
		if action == "add" {
			res = h.users.AddToGroups(r.Context(), meta, username, req.CustomerContext, req.GroupIDs)
		} else {
			res = h.users.RemoveFromGroups(r.Context(), meta, username, req.GroupIDs)
		}
		if !res.Succeeded() {
			httputil.WriteResult(w, res)
			return
		}
	}
	if len(req.CustomerNames) > 0 {
		if action == "add" {
			res = h.customers.AddUserToCustomers(r.Context(), meta, username, req.CustomerNames)
		} else {
			res = h.customers.RemoveCustomersFromUser(r.Context(), meta, username, req.CustomerNames)
		}
	}
	httputil.WriteResult(w, res)
}

// Edit changes the password, personal settings or status of a user. Each
// requested change runs in turn and the first failure is returned.
// PUT /api/v1/user/{name}
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !common.Decode(w, r, &req) {
		return
	}
	meta := common.Meta(r)
	rb := result.New(meta)
	username := chi.URLParam(r, "name")

	var res *result.Result

	if req.NewPassword != "" {
		res = h.users.ChangePassword(r.Context(), meta, username, req.Password, req.NewPassword)
		if !res.Succeeded() {
			httputil.WriteResult(w, res)
			return
		}
	}

	upd := domain.UserUpdate{FullName: req.FullName, Email: req.Email, CurrentCustomer: req.CurrentCustomer}
	if !upd.IsEmpty() {
		res = h.users.EditProperties(r.Context(), meta, username, upd)
		if !res.Succeeded() {
			httputil.WriteResult(w, res)
			return
		}
	}

	switch strings.ToLower(req.Enabled) {
	case "":
	case "toggle":
		granted, code, err := h.gate.Verify(r.Context(), meta.Username, domain.PermissionAdministrator, "")
		if err != nil {
			h.broke(w, rb, err)
			return
		}
		if !granted {
			httputil.WriteResult(w, rb.Forbidden(string(domain.PermissionAdministrator), code))
			return
		}
		res = h.users.ToggleStatus(r.Context(), meta, username)
	default:
		httputil.WriteResult(w, rb.IncorrectArgs(fmt.Sprintf("enabled must be toggle, got %q", req.Enabled)))
		return
	}

	if res == nil {
		res = rb.IncorrectArgs("no changes were requested")
	}
	httputil.WriteResult(w, res)
}

// Delete removes a user.
// DELETE /api/v1/user/{name}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	httputil.WriteResult(w, h.users.Remove(r.Context(), common.Meta(r), chi.URLParam(r, "name")))
}

// List returns users by customer, across customers or by name.
// GET /api/v1/users?customer_context=&all_customers=&user_name=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rb := common.Builder(r)
	q := r.URL.Query()

	if name := q.Get("user_name"); name != "" {
		u, err := h.users.Get(r.Context(), name)
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.WriteResult(w, rb.Retrieved())
			return
		}
		if err != nil {
			h.broke(w, rb, err)
			return
		}
		httputil.WriteResult(w, rb.Retrieved(u))
		return
	}

	customerName := q.Get("customer_context")
	if all, _ := common.ParseYesNo(q.Get("all_customers")); !all && customerName == "" {
		caller, err := h.users.Get(r.Context(), common.Caller(r))
		if err != nil {
			h.broke(w, rb, err)
			return
		}
		customerName = caller.CurrentCustomer
	}

	users, err := h.users.List(r.Context(), customerName)
	if err != nil {
		h.broke(w, rb, err)
		return
	}
	data := make([]any, 0, len(users))
	for i := range users {
		data = append(data, users[i])
	}
	httputil.WriteResult(w, rb.Retrieved(data...))
}

// Create creates a user and links it to any extra customers.
// POST /api/v1/users
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !common.Decode(w, r, &req) {
		return
	}
	meta := common.Meta(r)

	res := h.users.Create(r.Context(), meta, account.CreateUserInput{
		Username:        strings.TrimSpace(req.Username),
		FullName:        req.FullName,
		Password:        req.Password,
		Email:           req.Email,
		Enabled:         req.Enabled.Value,
		CustomerContext: req.CustomerContext,
		GroupIDs:        req.GroupIDs,
	})
	if res.Is(result.UserCreated) && len(req.CustomerNames) > 0 {
		extra := h.customers.AddUserToCustomers(r.Context(), meta, strings.TrimSpace(req.Username), req.CustomerNames)
		if !extra.Succeeded() {
			h.logger.Warn("user created without extra customers",
				"user", req.Username,
				"customers", req.CustomerNames,
				"vfense_status_code", extra.VFenseStatusCode,
			)
		}
	}
	httputil.WriteResult(w, res)
}

// DeleteBatch removes several users.
// DELETE /api/v1/users
func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	var req DeleteBatchRequest
	if !common.Decode(w, r, &req) {
		return
	}
	httputil.WriteResult(w, h.users.RemoveBatch(r.Context(), common.Meta(r), req.Usernames))
}

func (h *Handler) broke(w http.ResponseWriter, rb *result.Builder, err error) {
	meta := rb.Meta()
	h.logger.Error("request failed", "object", "user", "user", meta.Username, "uri", meta.URI, "error", err)
	httputil.WriteResult(w, rb.SomethingBroke("user"))
}
