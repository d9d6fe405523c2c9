// Package history persists validation run results so pass rates can be
// tracked across invocations. Two backends are provided: an embedded
// SQLite database for local use and PostgreSQL for shared deployments.
// Schema setup runs automatically on open via embedded migrations.
package history

import (
	"context"
	"embed"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Entry is one persisted validation run.
type Entry struct {
	RunID     string
	Scenario  string
	Passed    bool
	Findings  int // total findings in the report
	Failures  int // findings with a non-pass outcome
	StartedAt time.Time
	Duration  time.Duration
}

// Store records and lists validation runs. Implementations are safe for
// concurrent use.
type Store interface {
	// Save persists one run entry.
	Save(ctx context.Context, e Entry) error
	// List returns the most recent entries, newest first. A non-positive
	// limit applies a default.
	List(ctx context.Context, limit int) ([]Entry, error)
	// Close releases the underlying database resources.
	Close() error
}

// defaultListLimit bounds List when the caller passes no limit.
const defaultListLimit = 50

// Open picks a backend from the DSN: postgres:// and postgresql:// URLs
// connect to PostgreSQL, anything else is treated as a SQLite path
// (":memory:" included).
func Open(ctx context.Context, dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return OpenPostgres(ctx, dsn)
	}
	return OpenSQLite(dsn)
}
