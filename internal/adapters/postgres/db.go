// Package postgres stores benchmark histories in PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prxgr4mmer/ec-index-collector/internal/config"
	"github.com/prxgr4mmer/ec-index-collector/pkg/retry"
)

// connectAttempts covers a database container that is still starting
const connectAttempts = 4

//go:embed migrations/*.sql
var migrationFS embed.FS

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	url    string
	logger *slog.Logger

	// migrationsPath overrides the embedded migrations when set
	migrationsPath string
}

// NewDB opens the pool and waits until the server answers
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger = logger.With("component", "postgres")

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	policy := retry.ExponentialConfig(connectAttempts)
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		logger.Warn("database not reachable, retrying",
			"attempt", attempt,
			"backoff", backoff.String(),
			"error", err,
		)
	}
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.NewRetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		"max_conns", cfg.MaxOpenConns,
		"min_conns", cfg.MaxIdleConns,
	)

	return &DB{
		Pool:           pool,
		url:            cfg.URL,
		logger:         logger,
		migrationsPath: cfg.MigrationsPath,
	}, nil
}

// Migrate brings the schema up to date, from the embedded files unless a
// migrations path was configured
func (db *DB) Migrate() error {
	m, source, err := db.migrator()
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	db.logger.Info("running database migrations", "source", source)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	db.logger.Info("migrations completed",
		"version", version,
		"dirty", dirty,
	)

	return nil
}

func (db *DB) migrator() (*migrate.Migrate, string, error) {
	if db.migrationsPath != "" {
		m, err := migrate.New(db.migrationsPath, db.url)
		return m, db.migrationsPath, err
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, "", err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, db.url)
	return m, "embedded", err
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.logger.Info("closing database connection")
	db.Pool.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
