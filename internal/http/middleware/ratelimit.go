package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/tendant/vfense-accounts/internal/config"
	"github.com/tendant/vfense-accounts/internal/httputil"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// KeyFunc picks the bucket for a request. Defaults to the client IP.
	KeyFunc httprate.KeyFunc
	Logger  *slog.Logger
}

// RateLimit creates a rate limiter middleware that logs rejected requests.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = httprate.KeyByIP
	}
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(cfg.KeyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				username, _ := GetUsername(r.Context())
				cfg.Logger.Warn("rate limit exceeded",
					"ip", r.RemoteAddr,
					"user", username,
					"path", r.URL.Path,
					"method", r.Method,
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

// KeyByUsername buckets authenticated requests per user and everything
// else per client IP. Use after Auth.
func KeyByUsername(r *http.Request) (string, error) {
	if username, ok := GetUsername(r.Context()); ok {
		return "user:" + username, nil
	}
	return httprate.KeyByIP(r)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// RateLimiters holds the limiters applied to each route group.
type RateLimiters struct {
	// Login is keyed by client IP.
	Login func(http.Handler) http.Handler
	// API is keyed by the authenticated user.
	API func(http.Handler) http.Handler
}

// CreateRateLimiters builds the login and API limiters from configuration.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) RateLimiters {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return RateLimiters{Login: noOp, API: noOp}
	}

	return RateLimiters{
		Login: RateLimit(RateLimitConfig{
			Requests: cfg.LoginRequestsPerMinute,
			Window:   time.Duration(cfg.LoginWindowMinutes) * time.Minute,
			Logger:   logger,
		}),
		API: RateLimit(RateLimitConfig{
			Requests: cfg.APIRequestsPerMinute,
			Window:   time.Duration(cfg.APIWindowMinutes) * time.Minute,
			KeyFunc:  KeyByUsername,
			Logger:   logger,
		}),
	}
}
