// Package accounts wires the customer, user and group services into an
// embeddable HTTP API.
//
// Setup:
//
//  1. Open a backend (see internal/store or pkg/repository and pkg/docstore)
//  2. Create an Accounts instance, bootstrap it and mount its handler
//
// Basic usage:
//
//	db, _ := repository.NewDB(repository.Config{Host: "localhost", DBName: "vfense"})
//
//	a, err := accounts.New(accounts.Config{
//	    Stores:    repository.NewStores(db),
//	    Agents:    repository.NewAgentsRepository(db),
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := a.Bootstrap(ctx, os.Getenv("ADMIN_PASSWORD")); err != nil {
//	    log.Fatal(err)
//	}
//
//	http.ListenAndServe(":8080", a.Handler())
package accounts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/tendant/vfense-accounts/internal/config"
	httpserver "github.com/tendant/vfense-accounts/internal/http"
	"github.com/tendant/vfense-accounts/internal/http/features/customer"
	"github.com/tendant/vfense-accounts/internal/http/middleware"
	"github.com/tendant/vfense-accounts/internal/metrics"
	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/domain"
)

// MinJWTSecretLength is the shortest signing secret accepted.
const MinJWTSecretLength = 32

// Config holds the configuration for the accounts API.
type Config struct {
	// Stores are the customer, user, membership and group stores (required).
	Stores account.Stores

	// Agents moves or purges agent records after a customer is removed (default: no agents).
	Agents customer.AgentStore

	// JWTSecret is the secret key for signing access tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in access tokens (default: "vfense").
	JWTIssuer string

	// AccessTokenTTL is the lifetime of access tokens (default: 60 minutes).
	AccessTokenTTL time.Duration

	// Account defaults: admin name, default customer, package URL, password policy.
	AdminUsername   string
	DefaultCustomer string
	DownloadURL     string
	PasswordPolicy  *auth.PasswordPolicy
	EmailRules      auth.EmailRules

	// Publisher announces account changes (default: discard).
	Publisher account.Publisher

	// Metrics enables /metrics when set.
	Metrics *metrics.HTTPMetrics

	// HealthCheck backs /health when set.
	HealthCheck func(ctx context.Context) error

	RateLimit       config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	CookieSecure    bool

	// Logger is the structured logger (default: slog.Default()).
	Logger *slog.Logger
}

// Accounts is the main accounts API instance.
type Accounts struct {
	config    Config
	opts      account.Options
	tokens    *auth.TokenService
	gate      *auth.PermissionGate
	customers *account.CustomerService
	users     *account.UserService
	groups    *account.GroupService
}

// New creates a new Accounts instance with the given configuration.
func New(cfg Config) (*Accounts, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:         []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		return nil, err
	}

	opts := account.Options{
		AdminUsername:   cfg.AdminUsername,
		DefaultCustomer: cfg.DefaultCustomer,
		DownloadURL:     cfg.DownloadURL,
		PasswordPolicy:  cfg.PasswordPolicy,
		EmailRules:      cfg.EmailRules,
		Publisher:       cfg.Publisher,
		Logger:          cfg.Logger,
	}

	return &Accounts{
		config:    cfg,
		opts:      opts,
		tokens:    tokens,
		gate:      auth.NewPermissionGate(cfg.Stores.Users, cfg.Stores.Memberships, cfg.Stores.Groups),
		customers: account.NewCustomerService(cfg.Stores, opts),
		users:     account.NewUserService(cfg.Stores, opts),
		groups:    account.NewGroupService(cfg.Stores, opts),
	}, nil
}

// Bootstrap creates the default customer, the administrator group and the
// admin account when they are missing.
func (a *Accounts) Bootstrap(ctx context.Context, adminPassword string) (*account.BootstrapReport, error) {
	return account.Bootstrap(ctx, a.config.Stores, a.opts, adminPassword)
}

// Handler returns the HTTP API: /health, /metrics and the account routes under /api/v1.
func (a *Accounts) Handler() http.Handler {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          a.config.Logger,
		Tokens:          a.tokens,
		Gate:            a.gate,
		Customers:       a.customers,
		Users:           a.users,
		Groups:          a.groups,
		Agents:          a.config.Agents,
		Publisher:       a.config.Publisher,
		Metrics:         a.config.Metrics,
		HealthCheck:     a.config.HealthCheck,
		RateLimitConfig: a.config.RateLimit,
		SecurityHeaders: a.config.SecurityHeaders,
		Validation:      a.config.Validation,
		CookieSecure:    a.config.CookieSecure,
	})
}

// AuthMiddleware returns middleware that validates access tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(a.AuthMiddleware())
//	    r.Get("/agents", handler)
//	})
func (a *Accounts) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(a.tokens)
}

// RequirePermission returns middleware that checks a capability of the
// authenticated user in the customer named by ?customer_context=.
// Use after AuthMiddleware.
func (a *Accounts) RequirePermission(perm domain.Permission) func(http.Handler) http.Handler {
	return middleware.RequirePermission(a.gate, perm, a.config.Logger)
}

// GetUsername extracts the authenticated username from a request.
// Use after AuthMiddleware:
//
//	username, ok := accounts.GetUsername(r)
func GetUsername(r *http.Request) (string, bool) {
	return middleware.GetUsername(r.Context())
}

// Customers returns the customer service for advanced usage.
func (a *Accounts) Customers() *account.CustomerService { return a.customers }

// Users returns the user service for advanced usage.
func (a *Accounts) Users() *account.UserService { return a.users }

// Groups returns the group service for advanced usage.
func (a *Accounts) Groups() *account.GroupService { return a.groups }

// Gate returns the permission gate.
func (a *Accounts) Gate() *auth.PermissionGate { return a.gate }

// Tokens returns the access token service.
func (a *Accounts) Tokens() *auth.TokenService { return a.tokens }

func validateConfig(cfg *Config) error {
	s := cfg.Stores
	if s.Customers == nil || s.Users == nil || s.Memberships == nil || s.Groups == nil {
		return errors.New("accounts: all stores are required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("accounts: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < MinJWTSecretLength {
		return errors.New("accounts: JWTSecret must be at least 32 characters")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "vfense"
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if cfg.Agents == nil {
		cfg.Agents = noAgents{}
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noEvents{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

type noAgents struct{}

func (noAgents) MoveToCustomer(context.Context, string, string) (int64, error) { return 0, nil }
func (noAgents) DeleteForCustomer(context.Context, string) (int64, error)      { return 0, nil }

type noEvents struct{}

func (noEvents) Publish(context.Context, domain.Event) error { return nil }
