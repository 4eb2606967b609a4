package main

import (
	"github.com/spf13/cobra"

	"github.com/tendant/vfense-accounts/internal/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations (postgres) or index definitions (mongo)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.storeConfig(false)
			if err != nil {
				return err
			}
			return store.Migrate(cmd.Context(), cfg, a.logger)
		},
	}
}
