// Package eventbus fans progress events out to the live listeners of a session.
//
// Delivery is lossy: publishing to a session without listeners is a no-op and a
// listener whose queue is full misses the event. Nothing is replayed to late
// subscribers.
package eventbus

import (
	"context"
	"sync"

	"orange-sidecar/internal/agent"
)

// DefaultQueueSize is the per-listener buffer.
const DefaultQueueSize = 100

// Bus is a per-session publish/subscribe registry.
type Bus struct {
	mu        sync.RWMutex
	sessions  map[string]map[*Subscription]struct{}
	queueSize int
}

// Subscription is one listener's private queue.
type Subscription struct {
	bus       *Bus
	sessionID string
	queue     chan agent.StreamEvent
	once      sync.Once
	mu        sync.Mutex
	stop      func() bool
}

func New() *Bus {
	return NewWithQueueSize(DefaultQueueSize)
}

func NewWithQueueSize(size int) *Bus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Bus{
		sessions:  make(map[string]map[*Subscription]struct{}),
		queueSize: size,
	}
}

// Publish enqueues the event on every listener of event.SessionID without
// blocking.
func (b *Bus) Publish(event agent.StreamEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.sessions[event.SessionID] {
		select {
		case sub.queue <- event:
		default:
			// listener is behind; freshness wins
		}
	}
}

// Subscribe registers a new listener for sessionID. The subscription is closed
// when ctx is done or Close is called, whichever happens first.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) *Subscription {
	sub := &Subscription{
		bus:       b,
		sessionID: sessionID,
		queue:     make(chan agent.StreamEvent, b.queueSize),
	}

	b.mu.Lock()
	listeners, ok := b.sessions[sessionID]
	if !ok {
		listeners = make(map[*Subscription]struct{})
		b.sessions[sessionID] = listeners
	}
	listeners[sub] = struct{}{}
	b.mu.Unlock()

	stop := context.AfterFunc(ctx, sub.Close)
	sub.mu.Lock()
	sub.stop = stop
	sub.mu.Unlock()
	return sub
}

// ListenerCount returns the number of live listeners for sessionID.
func (b *Bus) ListenerCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions[sessionID])
}

// SessionCount returns the number of sessions with at least one listener.
func (b *Bus) SessionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	listeners := b.sessions[sub.sessionID]
	delete(listeners, sub)
	if len(listeners) == 0 {
		delete(b.sessions, sub.sessionID)
	}
	// Publish only sends while holding the read lock, so closing here is safe.
	close(sub.queue)
}

// Events returns the receive side of the listener queue. The channel is closed
// once the subscription ends.
func (s *Subscription) Events() <-chan agent.StreamEvent {
	return s.queue
}

// Next blocks until the next event arrives. ok is false when the subscription
// has ended or ctx is done.
func (s *Subscription) Next(ctx context.Context) (event agent.StreamEvent, ok bool) {
	select {
	case event, ok = <-s.queue:
		return event, ok
	case <-ctx.Done():
		return agent.StreamEvent{}, false
	}
}

// SessionID returns the session this listener is attached to.
func (s *Subscription) SessionID() string {
	return s.sessionID
}

// Close deregisters the listener. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		stop := s.stop
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		s.bus.remove(s)
	})
}
