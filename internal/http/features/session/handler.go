package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tendant/vfense-accounts/internal/http/features/common"
	"github.com/tendant/vfense-accounts/internal/httputil"
	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

// Handler handles session endpoints.
type Handler struct {
	logger       *slog.Logger
	users        *account.UserService
	tokens       *auth.TokenService
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, users *account.UserService, tokens *auth.TokenService, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		users:        users,
		tokens:       tokens,
		cookieConfig: cookieConfig,
	}
}

// LoginRequest represents a login request. "name" is accepted as an alias of "username".
type LoginRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Login authenticates a user and issues an access token.
// POST /api/v1/login
//
// For web clients: the token is also set as an HttpOnly cookie.
// For mobile clients: the token is only returned in the envelope.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !common.Decode(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = strings.TrimSpace(req.Name)
	}
	rb := result.New(httputil.Meta(r, username))

	if username == "" || req.Password == "" {
		httputil.WriteResult(w, rb.IncorrectArgs("username and password are required"))
		return
	}

	u, err := h.users.Authenticate(r.Context(), username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrUserDisabled) {
			h.logger.Warn("login failed", "user", username, "ip", r.RemoteAddr, "reason", err)
			// Same message for both to prevent enumeration
			httputil.WriteResult(w, rb.Unauthorized(result.LoginFailed, "invalid username or password"))
			return
		}
		h.logger.Error("login failed", "user", username, "error", err)
		httputil.WriteResult(w, rb.SomethingBroke("login"))
		return
	}

	tokens, err := h.tokens.Issue(u)
	if err != nil {
		h.logger.Error("failed to issue token", "user", username, "error", err)
		httputil.WriteResult(w, rb.SomethingBroke("login"))
		return
	}

	if !httputil.IsMobileClient(r) {
		httputil.SetAccessTokenCookie(w, tokens.AccessToken, h.tokens.AccessTokenTTL(), h.cookieConfig)
	}

	httputil.WriteResult(w, rb.Build(result.InformationRetrieved, result.LoginSucceeded,
		fmt.Sprintf("%s - logged in to customer %s", username, u.CurrentCustomer), tokens))
}

// Logout clears the access token cookie. Tokens are stateless and expire on their own.
// POST /api/v1/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	rb := common.Builder(r)

	if !httputil.IsMobileClient(r) {
		httputil.ClearAccessTokenCookie(w, h.cookieConfig)
	}

	httputil.WriteResult(w, rb.Build(result.InformationRetrieved, result.LogoutSucceeded,
		fmt.Sprintf("%s - logged out", rb.Meta().Username)))
}
