package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendant/vfense-accounts/accounts"
	"github.com/tendant/vfense-accounts/internal/events"
	"github.com/tendant/vfense-accounts/internal/metrics"
	"github.com/tendant/vfense-accounts/pkg/account"
)

func newServeCmd(a *app) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply migrations or indexes before serving")
	return cmd
}

func (a *app) serve(ctx context.Context, migrate bool) error {
	cfg := a.cfg
	logger := a.logger

	backend, err := a.openStore(ctx, migrate)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeBackend(backend.Close)

	var publisher account.Publisher = events.Nop{}
	if cfg.HasNATS() {
		p, err := events.Connect(events.Config{
			Servers:       cfg.NATSServers(),
			SubjectPrefix: cfg.NATSSubjectPrefix,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer p.Close()
		publisher = p
		logger.Info("event publishing enabled", "servers", cfg.NATSServers())
	}

	var httpMetrics *metrics.HTTPMetrics
	if cfg.MetricsEnabled {
		httpMetrics = metrics.NewHTTPMetrics("vfense_accounts")
	}

	opts := a.accountOptions(publisher)
	svc, err := accounts.New(accounts.Config{
		Stores:          backend.Stores,
		Agents:          backend.Agents,
		JWTSecret:       cfg.JWTSecret,
		JWTIssuer:       cfg.JWTIssuer,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		AdminUsername:   opts.AdminUsername,
		DefaultCustomer: opts.DefaultCustomer,
		DownloadURL:     opts.DownloadURL,
		PasswordPolicy:  opts.PasswordPolicy,
		EmailRules:      opts.EmailRules,
		Publisher:       publisher,
		Metrics:         httpMetrics,
		HealthCheck:     backend.Ping,
		RateLimit:       cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
		CookieSecure:    cfg.CookieSecure,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	if _, err := svc.Bootstrap(ctx, cfg.AdminPassword); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      svc.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr, "store", backend.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
