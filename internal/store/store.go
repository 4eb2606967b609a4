// Package store opens the backend selected by configuration and exposes it
// as account stores.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/docstore"
	"github.com/tendant/vfense-accounts/pkg/repository"
)

// Driver selects the backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMongo    Driver = "mongo"
)

// ParseDriver parses a driver name. "postgresql" and "mongodb" are accepted as aliases.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "postgres", "postgresql":
		return DriverPostgres, nil
	case "mongo", "mongodb":
		return DriverMongo, nil
	}
	return "", fmt.Errorf("unknown store driver %q", s)
}

// AgentStore reassigns or removes the agent records of a customer.
type AgentStore interface {
	MoveToCustomer(ctx context.Context, from, to string) (int64, error)
	DeleteForCustomer(ctx context.Context, customerName string) (int64, error)
}

var (
	_ account.CustomerStore   = (*repository.CustomersRepository)(nil)
	_ account.UserStore       = (*repository.UsersRepository)(nil)
	_ account.MembershipStore = (*repository.MembershipsRepository)(nil)
	_ account.GroupStore      = (*repository.GroupsRepository)(nil)
	_ AgentStore              = (*repository.AgentsRepository)(nil)

	_ account.CustomerStore   = (*docstore.CustomerStore)(nil)
	_ account.UserStore       = (*docstore.UserStore)(nil)
	_ account.MembershipStore = (*docstore.MembershipStore)(nil)
	_ account.GroupStore      = (*docstore.GroupStore)(nil)
	_ AgentStore              = (*docstore.AgentStore)(nil)
)

// Config selects and configures the backend.
type Config struct {
	Driver   Driver
	Postgres repository.Config
	Mongo    docstore.Config
	// Migrate applies schema migrations or index definitions on open.
	Migrate bool
}

// Backend is an opened store.
type Backend struct {
	Driver Driver
	Stores account.Stores
	Agents AgentStore

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Ping checks the database is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

// Close releases the connection pool.
func (b *Backend) Close(ctx context.Context) error {
	return b.close(ctx)
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case DriverPostgres, "":
		return openPostgres(ctx, cfg, logger)
	case DriverMongo:
		return openMongo(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	db, err := repository.NewDB(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := repository.RunMigrations(db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("migrations applied")
	}
	logger.Info("connected to postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.DBName)
	return postgresBackend(db), nil
}

func postgresBackend(db *sql.DB) *Backend {
	return &Backend{
		Driver: DriverPostgres,
		Stores: account.Stores{
			Customers:   repository.NewCustomersRepository(db),
			Users:       repository.NewUsersRepository(db),
			Memberships: repository.NewMembershipsRepository(db),
			Groups:      repository.NewGroupsRepository(db),
		},
		Agents: repository.NewAgentsRepository(db),
		ping:   db.PingContext,
		close:  func(context.Context) error { return db.Close() },
	}
}

func openMongo(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	client, err := docstore.Connect(ctx, cfg.Mongo)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := client.EnsureIndexes(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		logger.Info("indexes ensured")
	}
	logger.Info("connected to mongodb", "database", cfg.Mongo.Database)
	return &Backend{
		Driver: DriverMongo,
		Stores: account.Stores{
			Customers:   docstore.NewCustomerStore(client),
			Users:       docstore.NewUserStore(client),
			Memberships: docstore.NewMembershipStore(client),
			Groups:      docstore.NewGroupStore(client),
		},
		Agents: docstore.NewAgentStore(client),
		ping:   client.Ping,
		close:  client.Close,
	}, nil
}

// Migrate applies the schema of the configured backend. For postgres it
// also prints the migration status.
func Migrate(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Driver == DriverMongo {
		client, err := docstore.Connect(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		defer client.Close(ctx)
		if err := client.EnsureIndexes(ctx); err != nil {
			return err
		}
		logger.Info("indexes ensured", "database", cfg.Mongo.Database)
		return nil
	}

	db, err := repository.NewDB(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := repository.RunMigrations(db); err != nil {
		return err
	}
	logger.Info("migrations applied", "database", cfg.Postgres.DBName)
	return repository.MigrationStatus(db)
}
