package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safecommute/safecommute-backend-go/internal/config"
)

var (
	cfgFile string
	v       = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "safecommute",
	Short: "Real-time transit crowd and safety monitoring backend",
	Long: `safecommute ingests crowd density readings, vehicle telemetry and safety alerts,
streams them to dashboards and ranks crowd-aware route options.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("db-driver", "sqlite", "Database driver (sqlite or postgres)")
	flags.String("db-dsn", "./data/safecommute.db", "Database DSN or sqlite file path")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	_ = v.BindPFlag("database.driver", flags.Lookup("db-driver"))
	_ = v.BindPFlag("database.dsn", flags.Lookup("db-dsn"))
	_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))

	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
