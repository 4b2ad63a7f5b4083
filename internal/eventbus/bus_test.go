package eventbus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orange-sidecar/internal/agent"
)

func event(session, name string) agent.StreamEvent {
	return agent.StreamEvent{SessionID: session, Event: name, Message: name}
}

func drain(sub *Subscription) []string {
	var names []string
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return names
			}
			names = append(names, ev.Event)
		default:
			return names
		}
	}
}

func TestPublishWithoutListenersIsNoop(t *testing.T) {
	bus := New()
	assert.NotPanics(t, func() {
		bus.Publish(event("nobody", "planning_started"))
	})
	assert.Equal(t, 0, bus.SessionCount())
}

func TestLateSubscriberGetsNoReplay(t *testing.T) {
	bus := New()
	ctx := context.Background()

	early := bus.Subscribe(ctx, "s1")
	defer early.Close()

	bus.Publish(event("s1", "one"))
	bus.Publish(event("s1", "two"))

	late := bus.Subscribe(ctx, "s1")
	defer late.Close()

	bus.Publish(event("s1", "three"))
	bus.Publish(event("s1", "four"))

	assert.Equal(t, []string{"one", "two", "three", "four"}, drain(early))
	assert.Equal(t, []string{"three", "four"}, drain(late))
}

func TestEventsAreScopedToSession(t *testing.T) {
	bus := New()
	a := bus.Subscribe(context.Background(), "a")
	defer a.Close()
	b := bus.Subscribe(context.Background(), "b")
	defer b.Close()

	bus.Publish(event("a", "for-a"))

	assert.Equal(t, []string{"for-a"}, drain(a))
	assert.Empty(t, drain(b))
	assert.Equal(t, 2, bus.SessionCount())
}

func TestFullQueueDropsEvents(t *testing.T) {
	bus := NewWithQueueSize(2)
	sub := bus.Subscribe(context.Background(), "s")
	defer sub.Close()

	for i := 0; i < 5; i++ {
		bus.Publish(event("s", fmt.Sprintf("e%d", i)))
	}

	assert.Equal(t, []string{"e0", "e1"}, drain(sub))
}

func TestContextCancelDeregisters(t *testing.T) {
	bus := New()
	ctx, cancel := context.WithCancel(context.Background())

	sub := bus.Subscribe(ctx, "s")
	require.Equal(t, 1, bus.ListenerCount("s"))

	cancel()

	require.Eventually(t, func() bool {
		return bus.ListenerCount("s") == 0 && bus.SessionCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := <-sub.Events()
	assert.False(t, ok, "queue should be closed after cancellation")

	// publishing after teardown must not panic
	bus.Publish(event("s", "late"))
}

func TestCloseIsIdempotentAndKeepsOtherListeners(t *testing.T) {
	bus := New()
	first := bus.Subscribe(context.Background(), "s")
	second := bus.Subscribe(context.Background(), "s")
	defer second.Close()

	first.Close()
	first.Close()

	assert.Equal(t, 1, bus.ListenerCount("s"))
	bus.Publish(event("s", "after"))
	assert.Equal(t, []string{"after"}, drain(second))
}

func TestNextBlocksUntilEvent(t *testing.T) {
	bus := New()
	sub := bus.Subscribe(context.Background(), "s")
	defer sub.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		bus.Publish(event("s", "wake"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := sub.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "wake", ev.Event)
	assert.Equal(t, "s", sub.SessionID())
}

func TestNextReturnsOnContextDone(t *testing.T) {
	bus := New()
	sub := bus.Subscribe(context.Background(), "s")
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := sub.Next(ctx)
	assert.False(t, ok)
}

func TestConcurrentSessions(t *testing.T) {
	bus := New()
	const sessions = 20
	const perSession = 50

	var wg sync.WaitGroup
	results := make([][]string, sessions)

	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", i)
			sub := bus.Subscribe(context.Background(), id)
			defer sub.Close()

			for j := 0; j < perSession; j++ {
				bus.Publish(event(id, fmt.Sprintf("%d", j)))
			}
			results[i] = drain(sub)
		}(i)
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		require.Len(t, results[i], perSession)
		for j, name := range results[i] {
			assert.Equal(t, fmt.Sprintf("%d", j), name)
		}
	}
	assert.Equal(t, 0, bus.SessionCount())
}
