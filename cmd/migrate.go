package cmd

import (
	"errors"
	"fmt"

	"user-admin/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect schema migrations",
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, db, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			defer closeDB(db, logger)

			ran, err := database.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			logger.Info("Migrations applied", zap.Strings("migrations", ran))
			return nil
		},
	})

	migrate.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, db, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			defer closeDB(db, logger)

			id, err := database.Rollback(cmd.Context(), db)
			if errors.Is(err, database.ErrNothingToRollback) {
				logger.Info("Nothing to roll back")
				return nil
			}
			if err != nil {
				return err
			}
			logger.Info("Migration rolled back", zap.String("migration", id))
			return nil
		},
	})

	migrate.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, db, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			defer closeDB(db, logger)

			statuses, err := database.Status(cmd.Context(), db)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, st := range statuses {
				state := "pending"
				if st.Applied {
					state = "applied " + st.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(out, "%-55s %s\n", st.ID, state)
			}
			return nil
		},
	})

	return migrate
}
