//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
)

const migrationsDir = "internal/migrations/sql"

// MigrateUp runs all pending migrations
func MigrateUp() error {
	return run("go", "run", "./cmd", "migrate", "up")
}

// MigrateReset drops every table and re-applies all migrations (DESTRUCTIVE)
func MigrateReset() error {
	return run("go", "run", "./cmd", "migrate", "reset", "--yes")
}

// MigrateDown rolls back the last migration
func MigrateDown() error {
	return run("go", "run", "./cmd", "migrate", "down")
}

// MigrateVersion prints the current schema version
func MigrateVersion() error {
	return run("go", "run", "./cmd", "migrate", "version")
}

// MigrateCreate creates new migration files
func MigrateCreate(name string) error {
	if name == "" {
		return fmt.Errorf("migration name is required")
	}
	return run("migrate", "create", "-ext", "sql", "-dir", migrationsDir, "-seq", name)
}

// Serve starts the HTTP server
func Serve() error {
	return run("go", "run", "./cmd", "serve")
}

// Worker starts the preview job worker
func Worker() error {
	return run("go", "run", "./cmd", "worker")
}

// Test runs the unit tests
func Test() error {
	return run("go", "test", "./...")
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
