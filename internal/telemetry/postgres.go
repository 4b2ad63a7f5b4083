package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	sqlStore
}

func NewPostgresStore(db *sql.DB, maxEvents int) *PostgresStore {
	if maxEvents <= 0 {
		maxEvents = 5000
	}
	return &PostgresStore{sqlStore{db: db, maxEvents: maxEvents, numbered: true, now: time.Now}}
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string, maxEvents int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	s := NewPostgresStore(db, maxEvents)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

const createPostgresTable = `
	CREATE TABLE IF NOT EXISTS telemetry_events (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		stage TEXT NOT NULL,
		app TEXT NOT NULL DEFAULT '',
		action_kind TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		latency_ms INTEGER,
		error_code TEXT NOT NULL DEFAULT ''
	)`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createPostgresTable); err != nil {
		return fmt.Errorf("failed to migrate telemetry table: %w", err)
	}
	return nil
}
