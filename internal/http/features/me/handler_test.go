package me

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

func TestHandler_GetMe(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateCustomer(t, "acme")
	installers := env.CreateGroup(t, "installers", "acme", "install", "reboot")
	env.CreateUser(t, "bob", "acme", installers)

	h := NewHandler(env.Logger, env.Users, env.Gate)
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	do := func(username, target string) (*httptest.ResponseRecorder, result.Result) {
		req := testutil.NewRequest(t, http.MethodGet, target, nil)
		req = req.WithContext(middleware.WithUsername(req.Context(), username))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec, testutil.DecodeResult(t, rec)
	}

	tests := []struct {
		name       string
		username   string
		target     string
		wantStatus int
		wantCode   result.Code
		wantScope  string
		wantPerms  []any
	}{
		{
			name:       "current customer",
			username:   "bob",
			target:     "/me",
			wantStatus: http.StatusOK,
			wantCode:   result.InformationReturned,
			wantScope:  "acme",
			wantPerms:  []any{"install", "reboot"},
		},
		{
			name:       "admin in default",
			username:   "admin",
			target:     "/me",
			wantStatus: http.StatusOK,
			wantCode:   result.InformationReturned,
			wantScope:  "default",
			wantPerms:  []any{"administrator"},
		},
		{
			name:       "admin in a created customer",
			username:   "admin",
			target:     "/me?customer_context=acme",
			wantStatus: http.StatusOK,
			wantCode:   result.InformationReturned,
			wantScope:  "acme",
			wantPerms:  []any{"administrator"},
		},
		{
			name:       "customer the caller does not belong to",
			username:   "bob",
			target:     "/me?customer_context=default",
			wantStatus: http.StatusConflict,
			wantCode:   result.InvalidCustomerName,
		},
		{
			name:       "unknown caller",
			username:   "ghost",
			target:     "/me",
			wantStatus: http.StatusConflict,
			wantCode:   result.UserNameDoesNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, res := do(tt.username, tt.target)
			require.Equal(t, tt.wantStatus, rec.Code, res.Message)
			assert.Equal(t, tt.wantCode, res.VFenseStatusCode)
			if tt.wantScope == "" {
				return
			}
			require.Len(t, res.Data, 1)
			profile := res.Data[0].(map[string]any)
			assert.Equal(t, tt.username, profile["user_name"])
			assert.Equal(t, tt.wantScope, profile["customer"])
			assert.ElementsMatch(t, tt.wantPerms, profile["permissions"])
		})
	}
}
