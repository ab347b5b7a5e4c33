// Package rdb implements internal/entity's repository interfaces against
// Postgres via pgx/v5 and pgxpool, with bun struct tags describing the
// schema and goose-driven SQL migrations.
package rdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pannpers/go-logging/logging"
	"github.com/tunetrail/backend/pkg/config"
)

// Database represents the database instance.
type Database struct {
	Pool   *pgxpool.Pool
	logger *logging.Logger
}

// New creates a new database instance with connection and ping verification.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Database, error) {
	dsn := cfg.Database.GetDSN()

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgxpool config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = time.Duration(cfg.Database.ConnMaxLifetime) * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgxpool: %w", err)
	}

	database := &Database{
		Pool:   pool,
		logger: logger,
	}

	if err := database.Ping(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info(ctx, "Database connection established successfully",
		slog.String("host", cfg.Database.Host),
		slog.Int("port", cfg.Database.Port),
		slog.String("database", cfg.Database.Name),
		slog.Int("max_open_conns", cfg.Database.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	return database, nil
}

const pingTimeout = 5 * time.Second

// Ping verifies the database connection.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := d.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// NewStdlibDB opens a *sql.DB via pgx/v5/stdlib for goose migrations. The
// returned cleanup closes it; callers must defer cleanup() regardless of
// the returned error being nil, mirroring the teacher's migration-caller
// contract.
func NewStdlibDB(ctx context.Context, cfg *config.Config, logger *logging.Logger) (db *sql.DB, cleanup func(), err error) {
	connConfig, err := pgx.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to parse pgx config for migrations: %w", err)
	}

	sqlDB := stdlib.OpenDB(*connConfig)
	cleanup = func() { _ = sqlDB.Close() }

	if err := sqlDB.PingContext(ctx); err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("failed to ping database for migrations: %w", err)
	}

	logger.Info(ctx, "Migration database connection established",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
	)

	return sqlDB, cleanup, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	d.logger.Info(context.Background(), "Closing database connection")
	if d.Pool != nil {
		d.Pool.Close()
	}
	return nil
}
