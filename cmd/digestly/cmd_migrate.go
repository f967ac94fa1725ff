package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"digestly/internal/infra/db"
	"digestly/internal/observability/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the schema migrations to the database named by DATABASE_URL.

Migrations are idempotent; running them against an up-to-date database is
a no-op.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger()

	if os.Getenv("DATABASE_URL") == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	database := db.Open()
	defer database.Close()

	if err := db.MigrateUp(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}
