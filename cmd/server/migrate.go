package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpattn/ecomdata/internal/config"
	"github.com/rpattn/ecomdata/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply PostgreSQL schema migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Storage.Driver != config.DriverPostgres {
			return fmt.Errorf("migrations apply to the postgres driver, configured driver is %q", cfg.Storage.Driver)
		}
		return db.RunMigrations(cfg.Database)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
