// Package db persists snapshot history and asynchronous preview jobs in
// PostgreSQL.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"supaconnect/internal/config"
)

// Connect opens and pings the configured database.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("database is not configured")
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err, "host", cfg.Host)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		slog.Error("Failed to ping database", "error", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to database", "host", cfg.Host, "name", cfg.Name)
	return db, nil
}
