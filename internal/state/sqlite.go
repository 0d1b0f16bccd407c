// Package state persists the last fired minute per errand id, so a restart
// never double-fires a minute that was already handled.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"errands/internal/domain"
)

const fileName = "schedule_state.db"

// Store is the schedule state contract. Writes are synchronous: when
// SetLastFired returns, the record is durable.
type Store interface {
	// LastFired returns the most recent minute recorded for the errand.
	// ok is false when the errand has never fired.
	LastFired(ctx context.Context, errandID string) (minute time.Time, ok bool, err error)
	// SetLastFired upserts the record atomically for a single errand id.
	SetLastFired(ctx context.Context, errandID string, minute time.Time) error
	Close() error
}

// Open creates (if needed) baseDir and the SQLite database under it.
// A base directory that cannot be created is a startup failure.
func Open(baseDir string) (Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("%w: state base directory is required", domain.ErrConfiguration)
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: state dir %s: %v", domain.ErrConfiguration, baseDir, err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", filepath.Join(baseDir, fileName))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open state db: %v", domain.ErrConfiguration, err)
	}
	db.SetMaxOpenConns(1) // SQLite single writer

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: state schema: %v", domain.ErrConfiguration, err)
	}
	return &sqliteStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS schedule_state (
  errand_id TEXT PRIMARY KEY,
  last_fired TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	_, err := db.Exec(schema)
	return err
}

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) LastFired(ctx context.Context, errandID string) (time.Time, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT last_fired FROM schedule_state WHERE errand_id = ?`, errandID)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("read schedule state for %s: %w", errandID, err)
	}
	minute, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt schedule state for %s: %w", errandID, err)
	}
	return minute, true, nil
}

func (s *sqliteStore) SetLastFired(ctx context.Context, errandID string, minute time.Time) error {
	raw := minute.UTC().Truncate(time.Minute).Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO schedule_state (errand_id, last_fired, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(errand_id) DO UPDATE SET
  last_fired = excluded.last_fired,
  updated_at = CURRENT_TIMESTAMP;
`, errandID, raw)
	if err != nil {
		return fmt.Errorf("write schedule state for %s: %w", errandID, err)
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }
