package telemetry

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu        sync.RWMutex
	events    []Event
	maxEvents int
	now       func() time.Time
}

func NewMemoryStore(maxEvents int) *MemoryStore {
	if maxEvents <= 0 {
		maxEvents = 5000
	}
	return &MemoryStore{
		maxEvents: maxEvents,
		now:       time.Now,
	}
}

func (s *MemoryStore) Append(_ context.Context, event Event) (int, error) {
	event = prepare(event, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if len(s.events) > s.maxEvents {
		drop := dropCount(s.maxEvents)
		kept := make([]Event, len(s.events)-drop)
		copy(kept, s.events[drop:])
		s.events = kept
	}
	return len(s.events), nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Event, error) {
	limit = ClampLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.events) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(s.events)-start)
	copy(out, s.events[start:])
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
