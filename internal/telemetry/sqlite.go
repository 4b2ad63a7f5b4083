package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	sqlStore
}

func NewSQLiteStore(db *sql.DB, maxEvents int) (*SQLiteStore, error) {
	if maxEvents <= 0 {
		maxEvents = 5000
	}
	s := &SQLiteStore{sqlStore{db: db, maxEvents: maxEvents, now: time.Now}}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens (or creates) the database at dsn.
func OpenSQLite(ctx context.Context, dsn string, maxEvents int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// a single connection keeps in-memory databases shared
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach sqlite: %w", err)
	}

	s, err := NewSQLiteStore(db, maxEvents)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS telemetry_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		stage TEXT NOT NULL,
		app TEXT NOT NULL DEFAULT '',
		action_kind TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		latency_ms INTEGER,
		error_code TEXT NOT NULL DEFAULT ''
	);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("failed to migrate telemetry table: %w", err)
	}
	return nil
}
