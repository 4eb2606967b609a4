package user

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/vfense-accounts/internal/http/middleware"
	"github.com/tendant/vfense-accounts/internal/testutil"
	"github.com/tendant/vfense-accounts/pkg/result"
)

type harness struct {
	env    *testutil.Env
	router chi.Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	env := testutil.NewEnv(t)
	h := NewHandler(env.Logger, env.Users, env.Customers, env.Gate)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return &harness{env: env, router: r}
}

func (h *harness) do(t *testing.T, username, method, target string, body any) (*httptest.ResponseRecorder, result.Result) {
	t.Helper()
	req := testutil.NewRequest(t, method, target, body)
	req = req.WithContext(middleware.WithUsername(req.Context(), username))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec, testutil.DecodeResult(t, rec)
}

func TestHandler_Create(t *testing.T) {
	h := newHarness(t)
	h.env.CreateCustomer(t, "acme")

	rec, res := h.do(t, "admin", http.MethodPost, "/users", map[string]any{
		"username":       "bob",
		"password":       testutil.UserPassword,
		"fullname":       "Bob Smith",
		"enabled":        "yes",
		"customer_names": "acme",
	})
	require.Equal(t, http.StatusOK, rec.Code, res.Message)
	assert.Equal(t, result.UserCreated, res.VFenseStatusCode)

	u, err := h.env.Users.Get(h.env.Ctx, "bob")
	require.NoError(t, err)
	assert.True(t, u.Enabled)
	assert.Equal(t, "default", u.CurrentCustomer)
	assert.True(t, h.env.IsMember(t, "bob", "default"))
	assert.True(t, h.env.IsMember(t, "bob", "acme"))

	_, res = h.do(t, "admin", http.MethodPost, "/users", map[string]any{"username": "bob", "password": testutil.UserPassword})
	assert.Equal(t, result.UserNameExists, res.VFenseStatusCode)

	rec, res = h.do(t, "admin", http.MethodPost, "/users", map[string]any{"username": "carol", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, result.InvalidPassword, res.VFenseStatusCode)
}

func TestHandler_CreateDisabledByDefault(t *testing.T) {
	h := newHarness(t)

	_, res := h.do(t, "admin", http.MethodPost, "/users", map[string]any{"username": "bob", "password": testutil.UserPassword})
	require.Equal(t, result.UserCreated, res.VFenseStatusCode, res.Message)

	u, err := h.env.Users.Get(h.env.Ctx, "bob")
	require.NoError(t, err)
	assert.False(t, u.Enabled)
}

func TestHandler_Get(t *testing.T) {
	h := newHarness(t)
	h.env.CreateUser(t, "bob", "default")
	h.env.CreateUser(t, "carol", "default")

	tests := []struct {
		name       string
		caller     string
		target     string
		wantStatus int
	}{
		{name: "admin reads anyone", caller: "admin", target: "/user/bob", wantStatus: http.StatusOK},
		{name: "self", caller: "bob", target: "/user/bob", wantStatus: http.StatusOK},
		{name: "other user", caller: "bob", target: "/user/carol", wantStatus: http.StatusForbidden},
		{name: "missing", caller: "admin", target: "/user/ghost", wantStatus: http.StatusConflict},
		{name: "property", caller: "bob", target: "/user/bob?property=current_customer", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, res := h.do(t, tt.caller, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.wantStatus, rec.Code, res.Message)
		})
	}

	_, res := h.do(t, "admin", http.MethodGet, "/user/admin", nil)
	require.Len(t, res.Data, 1)
	view := res.Data[0].(map[string]any)
	assert.Equal(t, "admin", view["user_name"])
	assert.Contains(t, view["customers"], "default")
	assert.NotEmpty(t, view["groups"])
}

func TestHandler_Modify(t *testing.T) {
	h := newHarness(t)
	h.env.CreateCustomer(t, "acme")
	h.env.CreateUser(t, "bob", "default")
	installers := h.env.CreateGroup(t, "installers", "default", "install")

	_, res := h.do(t, "admin", http.MethodPost, "/user/bob", map[string]any{"group_ids": []string{installers}})
	assert.Equal(t, result.GroupsAddedToUser, res.VFenseStatusCode, res.Message)

	_, res = h.do(t, "admin", http.MethodPost, "/user/bob", map[string]any{"action": "add", "customer_names": []string{"acme", "ghost"}})
	assert.Equal(t, result.InvalidCustomerName, res.VFenseStatusCode)
	assert.False(t, h.env.IsMember(t, "bob", "acme"))

	_, res = h.do(t, "admin", http.MethodPost, "/user/bob", map[string]any{"action": "add", "customer_names": "acme"})
	assert.Equal(t, result.CustomersAddedToUser, res.VFenseStatusCode)

	_, res = h.do(t, "admin", http.MethodPost, "/user/bob", map[string]any{"action": "delete", "customer_names": "acme"})
	assert.Equal(t, result.CustomersRemovedFromUser, res.VFenseStatusCode)

	_, res = h.do(t, "admin", http.MethodPost, "/user/bob", map[string]any{"action": "delete", "group_ids": installers})
	assert.Equal(t, result.GroupsRemovedFromUser, res.VFenseStatusCode)

	rec, _ := h.do(t, "admin", http.MethodPost, "/user/bob", map[string]any{"action": "add"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, "bob", http.MethodPost, "/user/bob", map[string]any{"customer_names": "acme"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_Edit(t *testing.T) {
	h := newHarness(t)
	h.env.CreateUser(t, "bob", "default")

	t.Run("change own password", func(t *testing.T) {
		_, res := h.do(t, "bob", http.MethodPut, "/user/bob", map[string]any{"password": testutil.UserPassword, "new_password": "N3w!Passw0rd"})
		assert.Equal(t, result.PasswordChanged, res.VFenseStatusCode, res.Message)

		_, err := h.env.Users.Authenticate(h.env.Ctx, "bob", "N3w!Passw0rd")
		assert.NoError(t, err)
	})

	t.Run("wrong current password", func(t *testing.T) {
		rec, res := h.do(t, "bob", http.MethodPut, "/user/bob", map[string]any{"password": "nope", "new_password": "An0ther!Passw0rd"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, result.InvalidPassword, res.VFenseStatusCode)
	})

	t.Run("personal settings", func(t *testing.T) {
		_, res := h.do(t, "bob", http.MethodPut, "/user/bob", map[string]any{"fullname": "Robert", "email": "bob@example.com"})
		assert.Equal(t, result.UserUpdated, res.VFenseStatusCode, res.Message)

		u, err := h.env.Users.Get(h.env.Ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "Robert", u.FullName)
		assert.Equal(t, "bob@example.com", u.Email)
	})

	t.Run("toggle requires administrator", func(t *testing.T) {
		rec, _ := h.do(t, "bob", http.MethodPut, "/user/bob", map[string]any{"enabled": "toggle"})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		_, res := h.do(t, "admin", http.MethodPut, "/user/bob", map[string]any{"enabled": "toggle"})
		assert.Equal(t, result.UserToggled, res.VFenseStatusCode)

		u, err := h.env.Users.Get(h.env.Ctx, "bob")
		require.NoError(t, err)
		assert.False(t, u.Enabled)
	})

	t.Run("nothing requested", func(t *testing.T) {
		rec, _ := h.do(t, "admin", http.MethodPut, "/user/bob", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_Delete(t *testing.T) {
	h := newHarness(t)
	h.env.CreateUser(t, "bob", "default")
	h.env.CreateUser(t, "carol", "default")
	h.env.CreateUser(t, "dave", "default")

	_, res := h.do(t, "admin", http.MethodDelete, "/user/bob", nil)
	assert.Equal(t, result.UserDeleted, res.VFenseStatusCode)
	assert.False(t, h.env.IsMember(t, "bob", "default"))

	_, res = h.do(t, "admin", http.MethodDelete, "/user/admin", nil)
	assert.Equal(t, result.AdminUserCannotBeRemoved, res.VFenseStatusCode)

	_, res = h.do(t, "admin", http.MethodDelete, "/users", map[string]any{"usernames": "carol,dave"})
	assert.Equal(t, result.UserDeleted, res.VFenseStatusCode)
	assert.Len(t, res.Data, 2)
}

func TestHandler_List(t *testing.T) {
	h := newHarness(t)
	h.env.CreateCustomer(t, "acme")
	h.env.CreateUser(t, "bob", "default")
	h.env.CreateUser(t, "carol", "acme")

	usernames := func(res result.Result) []string {
		out := make([]string, 0, len(res.Data))
		for _, d := range res.Data {
			out = append(out, d.(map[string]any)["user_name"].(string))
		}
		return out
	}

	tests := []struct {
		name   string
		target string
		want   []string
	}{
		{name: "current customer", target: "/users", want: []string{"admin", "bob"}},
		{name: "customer context", target: "/users?customer_context=acme", want: []string{"admin", "carol"}},
		{name: "all customers", target: "/users?all_customers=true", want: []string{"admin", "bob", "carol"}},
		{name: "by name", target: "/users?user_name=carol", want: []string{"carol"}},
		{name: "unknown name", target: "/users?user_name=ghost", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, res := h.do(t, "admin", http.MethodGet, tt.target, nil)
			require.Equal(t, http.StatusOK, rec.Code, res.Message)
			assert.ElementsMatch(t, tt.want, usernames(res))
		})
	}

	rec, _ := h.do(t, "bob", http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
