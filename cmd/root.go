package cmd

import (
	"fmt"
	"os"

	"user-admin/config"
	"user-admin/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type rootOptions struct {
	configPath string
}

// NewRootCommand builds the user-admin command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "user-admin",
		Short:         "User management service with role-based access control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./config.yaml or ./config/config.yaml)")

	root.AddCommand(newServeCommand(opts), newMigrateCommand(opts), newSeedCommand(opts))
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	switch level {
	case "debug":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}

// bootstrap loads configuration, builds the logger and opens the database.
func bootstrap(opts *rootOptions) (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	return cfg, logger, db, nil
}

func closeDB(db *gorm.DB, logger *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}
}
