package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// appendScript pushes one event and evicts the oldest batch atomically.
// KEYS[1] = list key
// ARGV[1] = encoded event
// ARGV[2] = max events
// ARGV[3] = eviction batch size
var appendScript = redis.NewScript(`
local n = redis.call("RPUSH", KEYS[1], ARGV[1])
local max = tonumber(ARGV[2])
local drop = tonumber(ARGV[3])
if n > max then
    redis.call("LTRIM", KEYS[1], drop, -1)
    n = n - drop
end
return n
`)

// RedisStore implements Store on a Redis list.
type RedisStore struct {
	client    *redis.Client
	key       string
	maxEvents int
	now       func() time.Time
}

func NewRedisStore(client *redis.Client, key string, maxEvents int) *RedisStore {
	if key == "" {
		key = "orange:telemetry"
	}
	if maxEvents <= 0 {
		maxEvents = 5000
	}
	return &RedisStore{client: client, key: key, maxEvents: maxEvents, now: time.Now}
}

// OpenRedis connects using a redis:// URL.
func OpenRedis(ctx context.Context, dsn, key string, maxEvents int) (*RedisStore, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return NewRedisStore(client, key, maxEvents), nil
}

func (s *RedisStore) Append(ctx context.Context, event Event) (int, error) {
	event = prepare(event, s.now())

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to encode telemetry event: %w", err)
	}

	n, err := appendScript.Run(ctx, s.client, []string{s.key}, string(data), s.maxEvents, dropCount(s.maxEvents)).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to append telemetry event: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	limit = ClampLimit(limit)

	raw, err := s.client.LRange(ctx, s.key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read telemetry events: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		var e Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to decode telemetry event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
