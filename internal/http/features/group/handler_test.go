package group

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

func serve(t *testing.T, router http.Handler, username, method, target string, body any) (*httptest.ResponseRecorder, result.Result) {
	t.Helper()
	req := testutil.NewRequest(t, method, target, body)
	req = req.WithContext(middleware.WithUsername(req.Context(), username))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec, testutil.DecodeResult(t, rec)
}

func newRouter(t *testing.T) (*testutil.Env, chi.Router) {
	t.Helper()
	env := testutil.NewEnv(t)
	r := chi.NewRouter()
	NewHandler(env.Logger, env.Groups, env.Users, env.Gate).RegisterRoutes(r)
	return env, r
}

func TestHandler_Create(t *testing.T) {
	env, router := newRouter(t)
	env.CreateCustomer(t, "acme")

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantCode   result.Code
	}{
		{
			name:       "current customer",
			body:       map[string]any{"group_name": "installers", "permissions": []string{"install", "uninstall"}},
			wantStatus: http.StatusOK,
			wantCode:   result.GroupCreated,
		},
		{
			name:       "explicit customer",
			body:       map[string]any{"group_name": "installers", "customer_context": "acme", "permissions": "install"},
			wantStatus: http.StatusOK,
			wantCode:   result.GroupCreated,
		},
		{
			name:       "duplicate",
			body:       map[string]any{"group_name": "installers", "permissions": "install"},
			wantStatus: http.StatusConflict,
			wantCode:   result.GroupExists,
		},
		{
			name:       "unknown permission",
			body:       map[string]any{"group_name": "pilots", "permissions": "fly"},
			wantStatus: http.StatusBadRequest,
			wantCode:   result.InvalidPermission,
		},
		{
			name:       "unknown customer",
			body:       map[string]any{"group_name": "pilots", "customer_context": "ghost", "permissions": "reboot"},
			wantStatus: http.StatusConflict,
			wantCode:   result.CustomerDoesNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, res := serve(t, router, "admin", http.MethodPost, "/groups", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, res.Message)
			assert.Equal(t, tt.wantCode, res.VFenseStatusCode)
		})
	}
}

func TestHandler_ListAndDelete(t *testing.T) {
	env, router := newRouter(t)
	id := env.CreateGroup(t, "installers", "default", "install")
	env.CreateUser(t, "bob", "default", id)

	rec, res := serve(t, router, "admin", http.MethodGet, "/groups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, res.Data, 2)

	_, res = serve(t, router, "admin", http.MethodDelete, "/group/"+id, nil)
	assert.Equal(t, result.UsersExistForGroup, res.VFenseStatusCode)

	rec, _ = serve(t, router, "bob", http.MethodDelete, "/group/"+id, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	r := env.Users.RemoveFromGroups(env.Ctx, result.Meta{Username: "admin"}, "bob", []string{id})
	require.Equal(t, result.GroupsRemovedFromUser, r.VFenseStatusCode, r.Message)

	_, res = serve(t, router, "admin", http.MethodDelete, "/group/"+id, nil)
	assert.Equal(t, result.GroupDeleted, res.VFenseStatusCode)

	_, res = serve(t, router, "admin", http.MethodDelete, "/group/"+id, nil)
	assert.Equal(t, result.InvalidGroupId, res.VFenseStatusCode)
}
