package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/vfense-accounts/internal/config"
	"github.com/tendant/vfense-accounts/internal/store"
	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/docstore"
	"github.com/tendant/vfense-accounts/pkg/repository"
)

var (
	version = "dev"
	commit  = "none"
)

func execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// app is the state shared by every subcommand, filled in by the root's
// PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "vfense-accounts",
		Short:         "vFense customer, user and group service",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional
			if cmd.Flags().Changed("env-file") {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load %s: %w", envFile, err)
				}
			} else {
				_ = godotenv.Load()
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			a.cfg = cfg
			a.logger = logger
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newBootstrapCmd(a),
	)
	return rootCmd
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch cfg.LogFormat {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	case "json", "":
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return nil, fmt.Errorf("invalid LOG_FORMAT %q", cfg.LogFormat)
}

func (a *app) storeConfig(migrate bool) (store.Config, error) {
	driver, err := store.ParseDriver(a.cfg.StoreDriver)
	if err != nil {
		return store.Config{}, err
	}
	return store.Config{
		Driver: driver,
		Postgres: repository.Config{
			Host:     a.cfg.DBHost,
			Port:     a.cfg.DBPort,
			User:     a.cfg.DBUser,
			Password: a.cfg.DBPassword,
			DBName:   a.cfg.DBName,
			SSLMode:  a.cfg.DBSSLMode,
		},
		Mongo: docstore.Config{
			URI:         a.cfg.MongoURI,
			Database:    a.cfg.MongoDatabase,
			MaxPoolSize: a.cfg.MongoMaxPoolSize,
		},
		Migrate: migrate,
	}, nil
}

func (a *app) openStore(ctx context.Context, migrate bool) (*store.Backend, error) {
	cfg, err := a.storeConfig(migrate)
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, cfg, a.logger)
}

func (a *app) accountOptions(publisher account.Publisher) account.Options {
	return account.Options{
		AdminUsername:   a.cfg.AdminUsername,
		DefaultCustomer: a.cfg.DefaultCustomer,
		DownloadURL:     a.cfg.DefaultDownloadURL,
		PasswordPolicy:  a.cfg.Password(),
		EmailRules:      a.cfg.EmailRules(),
		Publisher:       publisher,
		Logger:          a.logger,
	}
}
