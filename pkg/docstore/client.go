// Package docstore implements the account stores on MongoDB.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	customersCollection           = "customers"
	usersCollection               = "users"
	passwordsCollection           = "user_passwords"
	customerMembershipsCollection = "customer_memberships"
	groupsCollection              = "groups"
	groupMembershipsCollection    = "group_memberships"
	agentsCollection              = "agents"
	agentApplicationsCollection   = "agent_applications"
)

const (
	defaultMaxPoolSize = 100
	defaultMaxRetry    = 3
)

// Config holds MongoDB connection settings.
type Config struct {
	URI         string
	Database    string
	MaxPoolSize int
	MaxRetry    int
}

// ValidateAndSetDefaults validates the configuration and sets default values.
func (c *Config) ValidateAndSetDefaults() error {
	if c.URI == "" {
		return errors.New("mongo uri is required")
	}
	if c.Database == "" {
		return errors.New("mongo database is required")
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = defaultMaxRetry
	}
	return nil
}

// Client wraps a connected MongoDB client and the accounts database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB, retrying transient failures, and pings the server.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(uint64(cfg.MaxPoolSize)).
		SetServerSelectionTimeout(5 * time.Second)

	var (
		cli *mongo.Client
		err error
	)
	for i := 0; i < cfg.MaxRetry; i++ {
		cli, err = connect(ctx, opts)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(time.Second / 2)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	return &Client{client: cli, db: cli.Database(cfg.Database)}, nil
}

func connect(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}
	return cli, nil
}

// DB returns the accounts database.
func (c *Client) DB() *mongo.Database {
	return c.db
}

// Ping checks the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
