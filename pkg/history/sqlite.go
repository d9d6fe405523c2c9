package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// SQLiteStore persists runs in an embedded SQLite database. The zero
// value is not usable; construct with OpenSQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite database at path and
// applies pending migrations. ":memory:" gives an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	// A single connection keeps writes serialized and makes ":memory:"
	// behave as one database instead of one per pooled connection.
	db.SetMaxOpenConns(1)

	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating sqlite database %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrateSQLite(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, scenario, passed, findings, failures, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Scenario, e.Passed, e.Findings, e.Failures,
		e.StartedAt.UTC().Format(time.RFC3339Nano), e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("saving run %s: %w", e.RunID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, scenario, passed, findings, failures, started_at, duration_ms
		 FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanEntry reads one row through the given scan function, shared by both
// backends since the column layout is identical.
func scanEntry(scan func(dest ...any) error) (Entry, error) {
	var (
		e          Entry
		startedAt  string
		durationMS int64
	)
	if err := scan(&e.RunID, &e.Scenario, &e.Passed, &e.Findings, &e.Failures, &startedAt, &durationMS); err != nil {
		return Entry{}, fmt.Errorf("scanning run: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("run %s has malformed started_at %q: %w", e.RunID, startedAt, err)
	}
	e.StartedAt = ts
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return e, nil
}
