// Package postgres opens the pgx-backed database/sql pool.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"permitpulse/internal/platform/config"
	"permitpulse/migrations"
)

// Open connects to Postgres. Returns nil when no URL is configured so callers
// fall back to in-memory stores.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// OpenAndMigrate opens the pool and applies the embedded schema.
func OpenAndMigrate(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := Open(ctx, cfg)
	if err != nil || db == nil {
		return db, err
	}
	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
