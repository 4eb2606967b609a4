package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/vfense-accounts/internal/http/middleware"
	"github.com/tendant/vfense-accounts/internal/httputil"
	"github.com/tendant/vfense-accounts/internal/testutil"
	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/result"
)

func newHandler(t *testing.T) (*Handler, *testutil.Env, *auth.TokenService) {
	t.Helper()
	env := testutil.NewEnv(t)
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte("test-secret"), Issuer: "vfense"})
	require.NoError(t, err)
	return NewHandler(env.Logger, env.Users, tokens, httputil.DefaultCookieConfig()), env, tokens
}

func TestLogin(t *testing.T) {
	h, env, tokens := newHandler(t)
	env.CreateUser(t, "bob", "default")
	r := env.Users.Create(env.Ctx, result.Meta{Username: "admin"}, account.CreateUserInput{Username: "carol", Password: testutil.UserPassword})
	require.Equal(t, result.UserCreated, r.VFenseStatusCode, r.Message)

	tests := []struct {
		name       string
		body       string
		mobile     bool
		wantStatus int
		wantCode   result.Code
		wantCookie bool
	}{
		{
			name:       "web client",
			body:       `{"username":"bob","password":"` + testutil.UserPassword + `"}`,
			wantStatus: http.StatusOK,
			wantCode:   result.LoginSucceeded,
			wantCookie: true,
		},
		{
			name:       "mobile client with name alias",
			body:       `{"name":"bob","password":"` + testutil.UserPassword + `"}`,
			mobile:     true,
			wantStatus: http.StatusOK,
			wantCode:   result.LoginSucceeded,
		},
		{
			name:       "wrong password",
			body:       `{"username":"bob","password":"nope"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   result.LoginFailed,
		},
		{
			name:       "unknown user",
			body:       `{"username":"ghost","password":"nope"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   result.LoginFailed,
		},
		{
			name:       "disabled user",
			body:       `{"username":"carol","password":"` + testutil.UserPassword + `"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   result.LoginFailed,
		},
		{
			name:       "missing password",
			body:       `{"username":"bob"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   result.BadArguments,
		},
		{
			name:       "invalid json",
			body:       `{invalid}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   result.BadArguments,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodPost, "/api/v1/login", tt.body)
			if tt.mobile {
				req.Header.Set("X-Client-Type", "mobile")
			}
			rec := httptest.NewRecorder()
			h.Login(rec, req)

			res := testutil.DecodeResult(t, rec)
			assert.Equal(t, tt.wantStatus, rec.Code, res.Message)
			assert.Equal(t, tt.wantCode, res.VFenseStatusCode)

			cookies := rec.Result().Cookies()
			if tt.wantCookie {
				require.Len(t, cookies, 1)
				assert.Equal(t, httputil.AccessTokenCookie, cookies[0].Name)
				assert.True(t, cookies[0].HttpOnly)
			} else {
				assert.Empty(t, cookies)
			}

			if tt.wantCode != result.LoginSucceeded {
				return
			}
			require.Len(t, res.Data, 1)
			raw, err := json.Marshal(res.Data[0])
			require.NoError(t, err)
			var pair struct {
				AccessToken string `json:"access_token"`
				TokenType   string `json:"token_type"`
			}
			require.NoError(t, json.Unmarshal(raw, &pair))
			assert.Equal(t, "Bearer", pair.TokenType)

			claims, err := tokens.Validate(pair.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, "bob", claims.Subject)
			assert.Equal(t, "default", claims.Customer)
		})
	}
}

func TestLogout(t *testing.T) {
	h, _, _ := newHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/logout", nil)
	req = req.WithContext(middleware.WithUsername(req.Context(), "bob"))
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	res := testutil.DecodeResult(t, rec)
	assert.Equal(t, result.LogoutSucceeded, res.VFenseStatusCode)
	assert.Equal(t, "bob", res.Username)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
