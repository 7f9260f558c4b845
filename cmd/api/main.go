package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"efficio-backend/internal/config"
	"efficio-backend/internal/db"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "efficio",
	Short:         "Efficio task manager backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML); env vars and .env override defaults")

	rootCmd.AddCommand(serveCmd, migrateCmd, grantAdminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// openDB loads config, connects and applies migrations.
func openDB(ctx context.Context) (*config.Config, *sqlx.DB, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Connect(cfg.DB.Driver, cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting db: %w", err)
	}

	if err := db.Migrate(ctx, database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("migrating db: %w", err)
	}
	return cfg, database, nil
}
