package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/vfense-accounts/pkg/auth"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr      string
	ServerPort      int
	ShutdownTimeout time.Duration

	// Store
	StoreDriver string

	// PostgreSQL
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// MongoDB
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize int

	// NATS (optional)
	NATSURL           string
	NATSSubjectPrefix string

	// JWT
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	CookieSecure   bool

	// Accounts
	AdminUsername      string
	AdminPassword      string
	DefaultCustomer    string
	DefaultDownloadURL string

	PasswordPolicy  PasswordPolicyConfig
	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Validation      ValidationConfig

	MetricsEnabled bool
	LogLevel       string
	LogFormat      string
}

// PasswordPolicyConfig holds the password rules applied to new passwords.
type PasswordPolicyConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	Enabled                bool
	LoginRequestsPerMinute int
	LoginWindowMinutes     int
	APIRequestsPerMinute   int
	APIWindowMinutes       int
}

// SecurityHeadersConfig holds the response security headers.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
	CacheControl       string
}

// ValidationConfig holds request validation settings.
type ValidationConfig struct {
	MaxRequestBodySize   int64
	StrictEmail          bool
	BlockDisposableEmail bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr:      getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:      getEnvInt("SERVER_PORT", 8080),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		StoreDriver: getEnv("STORE_DRIVER", "postgres"),

		// Database defaults (matches podman setup: make postgres-start)
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 25432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "vfense"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "vfense"),
		MongoMaxPoolSize: getEnvInt("MONGO_MAX_POOL_SIZE", 100),

		NATSURL:           getEnv("NATS_URL", ""),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "vfense.accounts"),

		// JWT defaults
		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "vfense"),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 60*time.Minute),
		CookieSecure:   getEnvBool("COOKIE_SECURE", false),

		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		DefaultCustomer:    getEnv("DEFAULT_CUSTOMER", "default"),
		DefaultDownloadURL: getEnv("DEFAULT_DOWNLOAD_URL", "https://localhost/packages/"),

		PasswordPolicy: PasswordPolicyConfig{
			MinLength:        getEnvInt("PASSWORD_MIN_LENGTH", 8),
			RequireUppercase: getEnvBool("PASSWORD_REQUIRE_UPPERCASE", true),
			RequireLowercase: getEnvBool("PASSWORD_REQUIRE_LOWERCASE", true),
			RequireNumber:    getEnvBool("PASSWORD_REQUIRE_NUMBER", true),
			RequireSpecial:   getEnvBool("PASSWORD_REQUIRE_SPECIAL", true),
		},

		RateLimit: RateLimitConfig{
			Enabled:                getEnvBool("RATE_LIMIT_ENABLED", true),
			LoginRequestsPerMinute: getEnvInt("RATE_LIMIT_LOGIN_REQUESTS", 10),
			LoginWindowMinutes:     getEnvInt("RATE_LIMIT_LOGIN_WINDOW_MINUTES", 1),
			APIRequestsPerMinute:   getEnvInt("RATE_LIMIT_API_REQUESTS", 300),
			APIWindowMinutes:       getEnvInt("RATE_LIMIT_API_WINDOW_MINUTES", 1),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 0),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", "0"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", ""),
			CacheControl:       getEnv("SECURITY_CACHE_CONTROL", "no-store"),
		},

		Validation: ValidationConfig{
			MaxRequestBodySize:   getEnvInt64("MAX_REQUEST_BODY_SIZE", 1<<20),
			StrictEmail:          getEnvBool("EMAIL_STRICT", false),
			BlockDisposableEmail: getEnvBool("EMAIL_BLOCK_DISPOSABLE", false),
		},

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	return cfg, nil
}

// HasNATS returns true if event publishing is configured.
func (c *Config) HasNATS() bool {
	return c.NATSURL != ""
}

// NATSServers splits NATS_URL on commas.
func (c *Config) NATSServers() []string {
	return getList(c.NATSURL)
}

// Password returns the configured password policy.
func (c *Config) Password() *auth.PasswordPolicy {
	return &auth.PasswordPolicy{
		MinLength:        c.PasswordPolicy.MinLength,
		RequireUppercase: c.PasswordPolicy.RequireUppercase,
		RequireLowercase: c.PasswordPolicy.RequireLowercase,
		RequireNumber:    c.PasswordPolicy.RequireNumber,
		RequireSpecial:   c.PasswordPolicy.RequireSpecial,
	}
}

// EmailRules returns the configured email validation rules.
func (c *Config) EmailRules() auth.EmailRules {
	return auth.EmailRules{
		Strict:          c.Validation.StrictEmail,
		BlockDisposable: c.Validation.BlockDisposableEmail,
	}
}

// ParseLogLevel maps debug, info, warn and error onto slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
