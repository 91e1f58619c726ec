package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"supaconnect/internal/config"
	"supaconnect/internal/logging"
	"supaconnect/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	PersistentPreRun: func(*cobra.Command, []string) {
		if err := godotenv.Load(); err != nil {
			slog.Debug("No .env file loaded", "error", err)
		}
		logging.Setup(os.Getenv("LOG_LEVEL"))
	},
}

var migrateConfirm bool

var errNotConfirmed = errors.New("refusing to drop the database without --yes")

func init() {
	dropCmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop every table in the database",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if !migrateConfirm {
				return errNotConfirmed
			}
			return migrations.Drop(databaseURL())
		},
	}
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop every table and re-apply all migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if !migrateConfirm {
				return errNotConfirmed
			}
			return migrations.Reset(databaseURL())
		},
	}
	for _, cmd := range []*cobra.Command{dropCmd, resetCmd} {
		cmd.Flags().BoolVar(&migrateConfirm, "yes", false, "confirm that all data will be lost")
	}

	migrateCmd.AddCommand(
		dropCmd,
		resetCmd,
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return migrations.Up(databaseURL())
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return migrations.Down(databaseURL())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return migrations.Version(databaseURL())
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return migrations.Force(databaseURL(), args[0])
			},
		},
	)
	rootCmd.AddCommand(migrateCmd)
}

// databaseURL is empty when DB_HOST is unset, which the migrator rejects.
func databaseURL() string {
	db := config.DatabaseFromEnv()
	if !db.Enabled() {
		return ""
	}
	return db.URL()
}
