package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safecommute/safecommute-backend-go/internal/config"
	"github.com/safecommute/safecommute-backend-go/internal/database"
	"github.com/safecommute/safecommute-backend-go/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		log := logger.FromConfig(cfg.Logging)

		db, err := openDatabase(cmd, cfg, log)
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
		return nil
	},
}

// openDatabase connects and brings the schema up to date
func openDatabase(cmd *cobra.Command, cfg *config.Config, log logger.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	}, log)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrationManager(db, log).Run(cmd.Context())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("Migrations complete", "applied", applied)
	return db, nil
}
