package migrations

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
)

// Up runs all available migrations
func Up(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("No new migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Migrations applied successfully")
	return nil
}

// Down rolls back one migration
func Down(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	slog.Info("Migration rolled back successfully")
	return nil
}

// Force forces the database to a specific migration version
func Force(databaseURL string, version string) error {
	versionInt, err := strconv.Atoi(version)
	if err != nil {
		return fmt.Errorf("invalid version format: %w", err)
	}

	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Force(versionInt); err != nil {
		return fmt.Errorf("failed to force migration to version %s: %w", version, err)
	}

	slog.Info("Migration forced successfully", "version", version)
	return nil
}

// Version shows the current migration version
func Version(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("No migrations applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	status := "clean"
	if dirty {
		status = "dirty"
	}

	slog.Info("Current migration version", "version", version, "status", status)
	fmt.Printf("Current version: %d (%s)\n", version, status)
	return nil
}

// Drop drops the entire database (DANGEROUS)
func Drop(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Drop(); err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}

	slog.Info("Database dropped successfully")
	return nil
}

// Reset drops all tables and re-runs all migrations
func Reset(databaseURL string) error {
	if err := Drop(databaseURL); err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}

	if err := Up(databaseURL); err != nil {
		return fmt.Errorf("failed to run migrations after reset: %w", err)
	}

	return nil
}