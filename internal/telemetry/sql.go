package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL stores.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db        *sql.DB
	maxEvents int
	numbered  bool // $1-style placeholders
	now       func() time.Time
}

const insertEventQuery = `
	INSERT INTO telemetry_events (id, session_id, timestamp, stage, app, action_kind, status, latency_ms, error_code)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

const countEventsQuery = `SELECT COUNT(*) FROM telemetry_events`

const trimEventsQuery = `
	DELETE FROM telemetry_events
	WHERE seq IN (SELECT seq FROM telemetry_events ORDER BY seq ASC LIMIT ?)`

const recentEventsQuery = `
	SELECT id, session_id, timestamp, stage, app, action_kind, status, latency_ms, error_code
	FROM (
		SELECT seq, id, session_id, timestamp, stage, app, action_kind, status, latency_ms, error_code
		FROM telemetry_events
		ORDER BY seq DESC
		LIMIT ?
	) AS recent
	ORDER BY seq ASC`

func (s *sqlStore) bind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Append(ctx context.Context, event Event) (int, error) {
	event = prepare(event, s.now())

	var latency sql.NullInt64
	if event.LatencyMS != nil {
		latency = sql.NullInt64{Int64: int64(*event.LatencyMS), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, s.bind(insertEventQuery),
		event.ID, event.SessionID, event.Timestamp, event.Stage, event.App, event.ActionKind, event.Status, latency, event.ErrorCode,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert telemetry event: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, countEventsQuery).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count telemetry events: %w", err)
	}

	if count > s.maxEvents {
		drop := dropCount(s.maxEvents)
		if _, err := s.db.ExecContext(ctx, s.bind(trimEventsQuery), drop); err != nil {
			return 0, fmt.Errorf("failed to trim telemetry events: %w", err)
		}
		count -= drop
	}

	return count, nil
}

func (s *sqlStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, s.bind(recentEventsQuery), ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []Event{}
	for rows.Next() {
		var e Event
		var latency sql.NullInt64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Timestamp, &e.Stage, &e.App, &e.ActionKind, &e.Status, &latency, &e.ErrorCode); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry event: %w", err)
		}
		if latency.Valid {
			v := int(latency.Int64)
			e.LatencyMS = &v
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
