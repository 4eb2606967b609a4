package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/vfense-accounts/internal/config"
	"github.com/tendant/vfense-accounts/internal/metrics"
	"github.com/tendant/vfense-accounts/internal/testutil"
	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/result"
)

func newTestServer(t *testing.T, health func(context.Context) error) (*httptest.Server, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte("router-secret"), Issuer: "vfense"})
	require.NoError(t, err)

	handler := NewRouter(RouterConfig{
		Logger:      env.Logger,
		Tokens:      tokens,
		Gate:        env.Gate,
		Customers:   env.Customers,
		Users:       env.Users,
		Groups:      env.Groups,
		Agents:      env.Mem.Agents(),
		Publisher:   env.Events,
		Metrics:     metrics.NewHTTPMetrics("vfense_test"),
		HealthCheck: health,
		Validation:  config.ValidationConfig{MaxRequestBodySize: 1 << 20},
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, env
}

func call(t *testing.T, srv *httptest.Server, method, path, token, body string) (*http.Response, result.Result) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("X-Client-Type", "mobile")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var res result.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return resp, res
}

func login(t *testing.T, srv *httptest.Server, username, password string) string {
	t.Helper()
	resp, res := call(t, srv, http.MethodPost, "/api/v1/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, res.Message)
	require.Len(t, res.Data, 1)
	return res.Data[0].(map[string]any)["access_token"].(string)
}

func TestRouter_CustomerLifecycle(t *testing.T) {
	srv, env := newTestServer(t, nil)
	token := login(t, srv, "admin", testutil.AdminPassword)

	resp, res := call(t, srv, http.MethodPost, "/api/v1/customers", token, `{"customer_name":"acme"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, res.Message)
	assert.Equal(t, result.CustomerCreated, res.VFenseStatusCode)
	assert.Equal(t, "admin", res.Username)
	assert.Equal(t, "/api/v1/customers", res.URI)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, res = call(t, srv, http.MethodPost, "/api/v1/users", token,
		`{"username":"bob","password":"`+testutil.UserPassword+`","customer_context":"acme","enabled":"yes"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, res.Message)

	resp, res = call(t, srv, http.MethodDelete, "/api/v1/customer/acme", token, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, result.UsersExistForCustomer, res.VFenseStatusCode)

	bobToken := login(t, srv, "bob", testutil.UserPassword)
	resp, res = call(t, srv, http.MethodDelete, "/api/v1/customer/acme", bobToken, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, result.PermissionDenied, res.GenericStatus)

	resp, res = call(t, srv, http.MethodGet, "/api/v1/user/bob", bobToken, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, res.Message)

	_, err := env.Customers.Get(env.Ctx, "acme")
	assert.NoError(t, err)
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, res := call(t, srv, http.MethodGet, "/api/v1/customers", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, result.Unauthenticated, res.VFenseStatusCode)

	resp, res = call(t, srv, http.MethodPost, "/api/v1/login", "", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, result.LoginFailed, res.VFenseStatusCode)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	healthy := true
	srv, _ := newTestServer(t, func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("database unreachable")
	})

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	healthy = false
	resp, err = srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "vfense_test_http_requests_total")
}

func TestRouter_Me(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	token := login(t, srv, "admin", testutil.AdminPassword)

	resp, res := call(t, srv, http.MethodGet, "/api/v1/me", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, res.Message)
	require.Len(t, res.Data, 1)
	profile := res.Data[0].(map[string]any)
	assert.Equal(t, "admin", profile["user_name"])
	assert.Equal(t, []any{"administrator"}, profile["permissions"])
}
