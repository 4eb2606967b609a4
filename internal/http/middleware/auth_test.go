package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/vfense-accounts/internal/httputil"
	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

func newTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte("test-secret"), Issuer: "vfense"})
	require.NoError(t, err)
	return tokens
}

func TestAuth(t *testing.T) {
	tokens := newTokens(t)
	pair, err := tokens.Issue(&domain.User{Username: "alice", CurrentCustomer: "default"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		prepare    func(r *http.Request)
		wantStatus int
		wantUser   string
	}{
		{
			name:       "bearer header",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+pair.AccessToken) },
			wantStatus: http.StatusOK,
			wantUser:   "alice",
		},
		{
			name: "cookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: httputil.AccessTokenCookie, Value: pair.AccessToken})
			},
			wantStatus: http.StatusOK,
			wantUser:   "alice",
		},
		{
			name:       "missing token",
			prepare:    func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage token",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			prepare:    func(r *http.Request) { r.Header.Set("Authorization", "Basic "+pair.AccessToken) },
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			var gotClaims *auth.AccessTokenClaims
			handler := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = GetUsername(r.Context())
				gotClaims, _ = GetClaims(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, gotUser)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, gotClaims)
				assert.Equal(t, "default", gotClaims.Customer)
				return
			}

			var body result.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, result.AuthenticationFailed, body.GenericStatus)
			assert.Equal(t, result.Unauthenticated, body.VFenseStatusCode)
		})
	}
}

func TestGetUsername_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := GetUsername(req.Context())
	assert.False(t, ok)
}
