package cmd

import (
	"user-admin/database"

	"github.com/spf13/cobra"
)

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed roles, permissions and the admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, db, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			defer closeDB(db, logger)

			return database.Seed(cmd.Context(), db, cfg.Admin, logger)
		},
	}
}
