package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"orange-sidecar/internal/config"
)

// Recent limits
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Event is one session telemetry record sent by the desktop client.
type Event struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	Timestamp  string `json:"timestamp"`
	Stage      string `json:"stage"`
	App        string `json:"app,omitempty"`
	ActionKind string `json:"action_kind,omitempty"`
	Status     string `json:"status"`
	LatencyMS  *int   `json:"latency_ms,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// Store keeps a bounded window of recent telemetry events.
type Store interface {
	// Append stores the event and returns the number of events retained.
	Append(ctx context.Context, event Event) (int, error)
	// Recent returns up to limit of the newest events, oldest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
	Close() error
}

// ClampLimit bounds a requested page size to [1, MaxLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// dropCount is how many of the oldest events are evicted once the window is
// exceeded; a 5000 event window evicts 1000 at a time.
func dropCount(maxEvents int) int {
	if n := maxEvents / 5; n > 0 {
		return n
	}
	return 1
}

// prepare assigns the server-side id and a timestamp when the client sent none.
func prepare(event Event, now time.Time) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp == "" {
		event.Timestamp = now.UTC().Format(time.RFC3339Nano)
	}
	return event
}

// Open builds the store named by the configuration.
func Open(ctx context.Context, cfg config.TelemetrySection) (Store, error) {
	switch cfg.Backend {
	case config.TelemetryMemory, "":
		return NewMemoryStore(cfg.MaxEvents), nil
	case config.TelemetrySQLite:
		s, err := OpenSQLite(ctx, cfg.DSN, cfg.MaxEvents)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.TelemetryPostgres:
		s, err := OpenPostgres(ctx, cfg.DSN, cfg.MaxEvents)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.TelemetryRedis:
		s, err := OpenRedis(ctx, cfg.DSN, cfg.RedisKey, cfg.MaxEvents)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown telemetry backend: %s", cfg.Backend)
	}
}
