package httputil

import (
	"net/http"
	"time"
)

// AccessTokenCookie is the name of the cookie holding the access token.
const AccessTokenCookie = "access_token"

// ClientTypeHeader lets API clients such as agents and scripts opt out of cookies.
const ClientTypeHeader = "X-Client-Type"

// CookieConfig holds cookie configuration.
type CookieConfig struct {
	Domain   string
	Path     string
	Secure   bool // true behind HTTPS
	SameSite http.SameSite
}

// DefaultCookieConfig returns default cookie configuration.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
}

// SetAccessTokenCookie stores the access token in an HttpOnly cookie that
// expires with the token.
func SetAccessTokenCookie(w http.ResponseWriter, token string, ttl time.Duration, cfg CookieConfig) {
	http.SetCookie(w, accessCookie(token, int(ttl.Seconds()), cfg))
}

// ClearAccessTokenCookie expires the access token cookie.
func ClearAccessTokenCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, accessCookie("", -1, cfg))
}

func accessCookie(value string, maxAge int, cfg CookieConfig) *http.Cookie {
	return &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    value,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}
}

// GetAccessTokenFromCookie returns the access token cookie when it is set and non-empty.
func GetAccessTokenFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// IsMobileClient reports whether the caller asked for tokens in the body
// only ("X-Client-Type: mobile" or "api").
func IsMobileClient(r *http.Request) bool {
	switch r.Header.Get(ClientTypeHeader) {
	case "mobile", "api":
		return true
	}
	return false
}
