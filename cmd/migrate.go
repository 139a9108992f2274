package cmd

import (
	"database/sql"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-crowdfunding/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Run: func(_ *cobra.Command, _ []string) {
		runMigration("up", migrations.Up)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	Run: func(_ *cobra.Command, _ []string) {
		runMigration("down", migrations.Down)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

func runMigration(direction string, fn func(db *sql.DB) error) {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}()

	if err := fn(db); err != nil {
		logrus.WithError(err).WithField("direction", direction).Fatal("Migration failed")
	}
	logrus.WithField("direction", direction).Info("Migrations applied")
}
