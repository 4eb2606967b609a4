package account

import (
	"context"
	"log/slog"
	"time"

	"github.com/tendant/vfense-accounts/pkg/auth"
	"github.com/tendant/vfense-accounts/pkg/domain"
	"github.com/tendant/vfense-accounts/pkg/result"
)

// Defaults for Options.
const (
	DefaultAdminUsername   = "admin"
	DefaultCustomerName    = "default"
	DefaultDownloadURLBase = "https://localhost/packages/"
)

// Options configures the account services.
type Options struct {
	// AdminUsername is the account that belongs to every customer and can never be removed.
	AdminUsername string
	// DefaultCustomer always exists and supplies fallbacks for new customers and users.
	DefaultCustomer string
	// DownloadURL seeds the default customer's package URL at bootstrap.
	DownloadURL    string
	PasswordPolicy *auth.PasswordPolicy
	EmailRules     auth.EmailRules
	Publisher      Publisher
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.AdminUsername == "" {
		o.AdminUsername = DefaultAdminUsername
	}
	if o.DefaultCustomer == "" {
		o.DefaultCustomer = DefaultCustomerName
	}
	if o.DownloadURL == "" {
		o.DownloadURL = DefaultDownloadURLBase
	}
	if o.PasswordPolicy == nil {
		o.PasswordPolicy = auth.DefaultPasswordPolicy()
	}
	if o.Publisher == nil {
		o.Publisher = nopPublisher{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// base holds what every service shares.
type base struct {
	stores Stores
	opts   Options
	logger *slog.Logger
}

func newBase(stores Stores, opts Options, component string) base {
	opts = opts.withDefaults()
	return base{stores: stores, opts: opts, logger: opts.Logger.With("component", component)}
}

// broke logs err and returns the generic failure envelope.
func (b *base) broke(rb *result.Builder, object string, err error) *result.Result {
	meta := rb.Meta()
	b.logger.Error("operation failed",
		"object", object,
		"user", meta.Username,
		"method", meta.Method,
		"uri", meta.URI,
		"error", err,
	)
	return rb.SomethingBroke(object)
}

func (b *base) publish(ctx context.Context, e domain.Event) {
	e.OccurredAt = time.Now()
	if err := b.opts.Publisher.Publish(ctx, e); err != nil {
		b.logger.Warn("failed to publish event", "type", e.Type, "error", err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// dedupe drops empty and repeated names, keeping the first occurrence.
func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
