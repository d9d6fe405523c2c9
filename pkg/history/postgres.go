package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pgx-contrib/pgxotel"
)

// PostgresStore persists runs in PostgreSQL through a pgx connection
// pool. Queries are traced via OpenTelemetry when a global tracer
// provider is configured.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to the given PostgreSQL DSN and applies pending
// migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	cfg.ConnConfig.Tracer = &pgxotel.QueryTracer{Name: "otelconform.history"}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := migratePostgres(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrating postgres database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func migratePostgres(pool *pgxpool.Pool) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	// The migrate driver needs database/sql; borrow pool connections
	// through the stdlib adapter for the duration of the migration.
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (run_id, scenario, passed, findings, failures, started_at, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.RunID, e.Scenario, e.Passed, e.Findings, e.Failures,
		e.StartedAt.UTC().Format(time.RFC3339Nano), e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("saving run %s: %w", e.RunID, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, scenario, passed, findings, failures, started_at, duration_ms
		 FROM runs ORDER BY started_at DESC, run_id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
