package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendant/vfense-accounts/internal/events"
	"github.com/tendant/vfense-accounts/pkg/account"
)

func newBootstrapCmd(a *app) *cobra.Command {
	var adminPassword string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the default customer, the administrator group and the admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("admin-password") {
				adminPassword = a.cfg.AdminPassword
			}

			ctx := cmd.Context()
			backend, err := a.openStore(ctx, true)
			if err != nil {
				return err
			}
			defer closeBackend(backend.Close)

			report, err := account.Bootstrap(ctx, backend.Stores, a.accountOptions(events.Nop{}), adminPassword)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "customer %s created: %t\nadministrator group created: %t\nadmin %s created: %t\n",
				a.cfg.DefaultCustomer, report.CustomerCreated,
				report.GroupCreated,
				a.cfg.AdminUsername, report.AdminCreated)
			return nil
		},
	}

	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "password for a newly created admin account (default $ADMIN_PASSWORD)")
	return cmd
}

func closeBackend(closeFn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = closeFn(ctx)
}
