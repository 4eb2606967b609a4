package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/vfense-accounts/internal/http/features/common"
	"github.com/tendant/vfense-accounts/internal/httputil"
	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

// AgentStore reassigns or removes the agent records of a deleted customer.
type AgentStore interface {
	MoveToCustomer(ctx context.Context, from, to string) (int64, error)
	DeleteForCustomer(ctx context.Context, customerName string) (int64, error)
}

// Handler handles customer endpoints.
type Handler struct {
	logger    *slog.Logger
	customers *account.CustomerService
	gate      *auth.PermissionGate
	agents    AgentStore
	publisher account.Publisher
}

// NewHandler creates a new customer handler.
func NewHandler(
	logger *slog.Logger,
	customers *account.CustomerService,
	gate *auth.PermissionGate,
	agents AgentStore,
	publisher account.Publisher,
) *Handler {
	return &Handler{
		logger:    logger,
		customers: customers,
		gate:      gate,
		agents:    agents,
		publisher: publisher,
	}
}

// CreateRequest represents a customer creation request.
type CreateRequest struct {
	Name         string `json:"customer_name"`
	DownloadURL  string `json:"download_url"`
	NetThrottle  int    `json:"net_throttle"`
	CPUThrottle  string `json:"cpu_throttle"`
	OperationTTL int    `json:"operation_ttl"`
}

// EditRequest represents a partial customer update.
type EditRequest struct {
	DownloadURL    *string `json:"download_url,omitempty"`
	OperationTTL   *int    `json:"operation_ttl,omitempty"`
	ServerQueueTTL *int    `json:"server_queue_ttl,omitempty"`
	AgentQueueTTL  *int    `json:"agent_queue_ttl,omitempty"`
	NetThrottle    *int    `json:"net_throttle,omitempty"`
	CPUThrottle    *string `json:"cpu_throttle,omitempty"`
}

// MembersRequest adds or removes users of a customer.
type MembersRequest struct {
	Action    string          `json:"action"`
	Usernames common.NameList `json:"usernames"`
}

// DeleteRequest controls what happens to the agents of a deleted customer.
type DeleteRequest struct {
	DeleteAllAgents      common.Flag `json:"delete_all_agents"`
	MoveAgentsToCustomer string      `json:"move_agents_to_customer"`
}

// DeleteBatchRequest names the customers to delete.
type DeleteBatchRequest struct {
	Names common.NameList `json:"customer_names"`
}

// Get returns a customer, or one of its properties.
// GET /api/v1/customer/{name}?property=
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rb := common.Builder(r)
	name := chi.URLParam(r, "name")

	if key := r.URL.Query().Get("property"); key != "" {
		v, err := h.customers.GetProperty(r.Context(), name, domain.CustomerKey(key))
		switch {
		case errors.Is(err, domain.ErrCustomerNotFound):
			httputil.WriteResult(w, rb.InvalidID(name, "customer", result.CustomerDoesNotExist))
		case errors.Is(err, account.ErrUnknownProperty):
			httputil.WriteResult(w, rb.IncorrectArgs(err.Error()))
		case err != nil:
			h.broke(w, rb, "customer", err)
		default:
			httputil.WriteResult(w, rb.Retrieved(v))
		}
		return
	}

	customer, err := h.customers.Get(r.Context(), name)
	if errors.Is(err, domain.ErrCustomerNotFound) {
		httputil.WriteResult(w, rb.InvalidID(name, "customer", result.CustomerDoesNotExist))
		return
	}
	if err != nil {
		h.broke(w, rb, "customer", err)
		return
	}
	httputil.WriteResult(w, rb.Retrieved(customer))
}

// Members adds users to or removes users from a customer.
// POST /api/v1/customer/{name}
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	var req MembersRequest
	if !common.Decode(w, r, &req) {
		return
	}
	meta := common.Meta(r)
	name := chi.URLParam(r, "name")

	switch strings.ToLower(req.Action) {
	case "add":
		httputil.WriteResult(w, h.customers.AddUsersToCustomer(r.Context(), meta, req.Usernames, name))
	case "delete", "remove":
		httputil.WriteResult(w, h.customers.RemoveUsersFromCustomer(r.Context(), meta, req.Usernames, name))
	default:
		httputil.WriteResult(w, result.New(meta).IncorrectArgs(fmt.Sprintf("unknown action %q, expected add or delete", req.Action)))
	}
}

// Edit updates the settings of a customer.
// PUT /api/v1/customer/{name}
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !common.Decode(w, r, &req) {
		return
	}

	upd := domain.CustomerUpdate{
		PackageDownloadURL: req.DownloadURL,
		OperationTTL:       req.OperationTTL,
		ServerQueueTTL:     req.ServerQueueTTL,
		AgentQueueTTL:      req.AgentQueueTTL,
		NetThrottle:        req.NetThrottle,
	}
	if req.CPUThrottle != nil {
		t := domain.CPUThrottle(*req.CPUThrottle)
		upd.CPUThrottle = &t
	}

	httputil.WriteResult(w, h.customers.Edit(r.Context(), common.Meta(r), chi.URLParam(r, "name"), upd))
}

// Delete removes a customer, then moves or purges its agents.
// DELETE /api/v1/customer/{name}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !common.Decode(w, r, &req) {
		return
	}
	meta := common.Meta(r)
	rb := result.New(meta)
	name := chi.URLParam(r, "name")
	moveTo := strings.TrimSpace(req.MoveAgentsToCustomer)

	if moveTo != "" {
		if moveTo == name {
			httputil.WriteResult(w, rb.IncorrectArgs("agents can not be moved to the customer being removed"))
			return
		}
		if _, err := h.customers.Get(r.Context(), moveTo); err != nil {
			if errors.Is(err, domain.ErrCustomerNotFound) {
				httputil.WriteResult(w, rb.InvalidID(moveTo, "customer", result.CustomerDoesNotExist))
				return
			}
			h.broke(w, rb, "customer", err)
			return
		}
	}

	res := h.customers.Remove(r.Context(), meta, name)
	if res.Is(result.CustomerDeleted) {
		switch {
		case moveTo != "":
			h.moveAgents(r.Context(), meta.Username, name, moveTo)
		case req.DeleteAllAgents.Value:
			h.purgeAgents(r.Context(), meta.Username, name)
		}
	}
	httputil.WriteResult(w, res)
}

// List returns the customers visible to the caller.
// GET /api/v1/customers?all_customers=&customer_context=&match=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rb := common.Builder(r)
	caller := common.Caller(r)
	q := r.URL.Query()
	all, _ := common.ParseYesNo(q.Get("all_customers"))

	if all {
		granted, code, err := h.gate.Verify(r.Context(), caller, domain.PermissionAdministrator, "")
		if err != nil {
			h.broke(w, rb, "customers", err)
			return
		}
		if !granted {
			httputil.WriteResult(w, rb.Forbidden(string(domain.PermissionAdministrator), code))
			return
		}
	}

	var (
		customers []domain.Customer
		err       error
	)
	if match := q.Get("match"); match != "" {
		customers, err = h.customers.ListMatching(r.Context(), match)
		if errors.Is(err, account.ErrInvalidPattern) {
			httputil.WriteResult(w, rb.IncorrectArgs(err.Error()))
			return
		}
		if err == nil && !all {
			customers, err = h.visible(r.Context(), caller, customers)
		}
	} else if all {
		customers, err = h.customers.List(r.Context(), "")
	} else {
		customers, err = h.customers.List(r.Context(), caller)
	}
	if err != nil {
		h.broke(w, rb, "customers", err)
		return
	}

	if name := q.Get("customer_context"); name != "" {
		customers = only(customers, name)
	}

	data := make([]any, 0, len(customers))
	for i := range customers {
		data = append(data, customers[i])
	}
	httputil.WriteResult(w, rb.Retrieved(data...))
}

// Create creates a customer owned by the caller.
// POST /api/v1/customers
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !common.Decode(w, r, &req) {
		return
	}
	meta := common.Meta(r)

	httputil.WriteResult(w, h.customers.Create(r.Context(), meta, account.CreateCustomerInput{
		Name:         strings.TrimSpace(req.Name),
		Owner:        meta.Username,
		DownloadURL:  req.DownloadURL,
		NetThrottle:  req.NetThrottle,
		CPUThrottle:  domain.CPUThrottle(req.CPUThrottle),
		OperationTTL: req.OperationTTL,
	}))
}

// DeleteBatch removes several customers and purges the agents of those removed.
// DELETE /api/v1/customers
func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	var req DeleteBatchRequest
	if !common.Decode(w, r, &req) {
		return
	}
	meta := common.Meta(r)
	rb := result.New(meta)

	for _, name := range req.Names {
		granted, code, err := h.administers(r.Context(), meta.Username, name)
		if err != nil {
			h.broke(w, rb, "customer", err)
			return
		}
		if !granted {
			httputil.WriteResult(w, rb.Forbidden(string(domain.PermissionAdministrator), code))
			return
		}
	}

	res, deleted := h.customers.RemoveBatch(r.Context(), meta, req.Names)
	for _, name := range deleted {
		h.purgeAgents(r.Context(), meta.Username, name)
	}
	httputil.WriteResult(w, res)
}

// requireTargetAdmin also requires the administrator capability in the
// customer named by the URL.
func (h *Handler) requireTargetAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rb := common.Builder(r)
		granted, code, err := h.administers(r.Context(), common.Caller(r), chi.URLParam(r, "name"))
		if err != nil {
			h.broke(w, rb, "customer", err)
			return
		}
		if !granted {
			httputil.WriteResult(w, rb.Forbidden(string(domain.PermissionAdministrator), code))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// administers checks caller's administrator capability in customer name.
// A customer that does not exist passes, so the operation reports it.
func (h *Handler) administers(ctx context.Context, caller, name string) (bool, result.Code, error) {
	if _, err := h.customers.Get(ctx, name); err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return true, result.NoCode, nil
		}
		return false, result.NoCode, err
	}
	return h.gate.Verify(ctx, caller, domain.PermissionAdministrator, name)
}

func (h *Handler) moveAgents(ctx context.Context, actor, from, to string) {
	n, err := h.agents.MoveToCustomer(ctx, from, to)
	detail := map[string]any{"to": to, "agents": n}
	if err != nil {
		h.logger.Error("failed to move agents of removed customer", "customer", from, "to", to, "error", err)
		detail["error"] = err.Error()
	}
	h.announce(ctx, domain.EventAgentsMoved, actor, from, detail)
}

func (h *Handler) purgeAgents(ctx context.Context, actor, name string) {
	n, err := h.agents.DeleteForCustomer(ctx, name)
	detail := map[string]any{"agents": n}
	if err != nil {
		h.logger.Error("failed to purge agents of removed customer", "customer", name, "error", err)
		detail["error"] = err.Error()
	}
	h.announce(ctx, domain.EventAgentsPurged, actor, name, detail)
}

func (h *Handler) announce(ctx context.Context, typ domain.EventType, actor, customer string, detail map[string]any) {
	e := domain.Event{Type: typ, Customer: customer, Actor: actor, Detail: detail, OccurredAt: time.Now()}
	if err := h.publisher.Publish(ctx, e); err != nil {
		h.logger.Warn("failed to publish event", "type", typ, "error", err)
	}
}

// visible keeps the customers caller belongs to.
func (h *Handler) visible(ctx context.Context, caller string, customers []domain.Customer) ([]domain.Customer, error) {
	mine, err := h.customers.List(ctx, caller)
	if err != nil {
		return nil, err
	}
	member := make(map[string]bool, len(mine))
	for _, c := range mine {
		member[c.Name] = true
	}
	out := customers[:0]
	for _, c := range customers {
		if member[c.Name] {
			out = append(out, c)
		}
	}
	return out, nil
}

func only(customers []domain.Customer, name string) []domain.Customer {
	for _, c := range customers {
		if c.Name == name {
			return []domain.Customer{c}
		}
	}
	return []domain.Customer{}
}

func (h *Handler) broke(w http.ResponseWriter, rb *result.Builder, object string, err error) {
	meta := rb.Meta()
	h.logger.Error("request failed", "object", object, "user", meta.Username, "uri", meta.URI, "error", err)
	httputil.WriteResult(w, rb.SomethingBroke(object))
}
