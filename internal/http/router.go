package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/vfense-accounts/internal/config"
	"github.com/tendant/vfense-accounts/internal/http/features/customer"
	"github.com/tendant/vfense-accounts/internal/http/features/group"
	"github.com/tendant/vfense-accounts/internal/http/features/me"
	"github.com/tendant/vfense-accounts/internal/http/features/session"
	"github.com/tendant/vfense-accounts/internal/http/features/user"
	"github.com/tendant/vfense-accounts/internal/http/middleware"
	"github.com/tendant/vfense-accounts/internal/httputil"
	"github.com/tendant/vfense-accounts/internal/metrics"
	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/auth"
)

// APIPrefix is where every account route is mounted.
const APIPrefix = "/api/v1"

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Tokens          *auth.TokenService
	Gate            *auth.PermissionGate
	Customers       *account.CustomerService
	Users           *account.UserService
	Groups          *account.GroupService
	Agents          customer.AgentStore
	Publisher       account.Publisher
	Metrics         *metrics.HTTPMetrics // nil disables /metrics
	HealthCheck     func(ctx context.Context) error
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	CookieSecure    bool // Whether to use Secure flag on cookies (should be true for HTTPS)
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.HealthCheck(ctx); err != nil {
				cfg.Logger.Warn("health check failed", "error", err)
				httputil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)

	cookieConfig := httputil.DefaultCookieConfig()
	cookieConfig.Secure = cfg.CookieSecure

	sessionHandler := session.NewHandler(cfg.Logger, cfg.Users, cfg.Tokens, cookieConfig)
	customerHandler := customer.NewHandler(cfg.Logger, cfg.Customers, cfg.Gate, cfg.Agents, cfg.Publisher)
	userHandler := user.NewHandler(cfg.Logger, cfg.Users, cfg.Customers, cfg.Gate)
	groupHandler := group.NewHandler(cfg.Logger, cfg.Groups, cfg.Users, cfg.Gate)
	meHandler := me.NewHandler(cfg.Logger, cfg.Users, cfg.Gate)

	r.Route(APIPrefix, func(r chi.Router) {
		r.With(rateLimiters.Login).Post("/login", sessionHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Tokens))
			r.Use(rateLimiters.API)

			r.Post("/logout", sessionHandler.Logout)
			meHandler.RegisterRoutes(r)
			customerHandler.RegisterRoutes(r)
			userHandler.RegisterRoutes(r)
			groupHandler.RegisterRoutes(r)
		})
	})

	return r
}
