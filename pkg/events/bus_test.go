package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(event Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestBusDeliversToMatchingSubscriber(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(bus.Close)

	rec := &recorder{}
	bus.Subscribe(EventAccessDecision, rec.handle)

	published := bus.Publish(EventAccessDecision, map[string]interface{}{"agent_id": "agent-1"})
	bus.Publish(EventPolicyAdded, map[string]interface{}{"policy_id": "p1"})

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, published.ID, rec.events[0].ID)
	assert.Equal(t, EventAccessDecision, rec.events[0].Name)
	assert.Equal(t, "agent-1", rec.events[0].Payload["agent_id"])
}

func TestBusWildcardSubscriber(t *testing.T) {
	bus := NewBus(nil)
	t.Cleanup(bus.Close)

	rec := &recorder{}
	bus.Subscribe("*", rec.handle)

	bus.Publish(EventAccessDecision, nil)
	bus.Publish(EventAgentQuarantined, nil)
	bus.Publish(EventMetricsCollected, nil)

	require.Eventually(t, func() bool { return rec.count() == 3 }, time.Second, 10*time.Millisecond)
}

func TestBusDropsForSaturatedSubscriber(t *testing.T) {
	bus := NewBus(nil)

	block := make(chan struct{})
	bus.Subscribe(EventAccessDecision, func(Event) { <-block })

	// One event is consumed by the blocked handler, 64 fill the buffer, the
	// rest must be dropped without blocking the publisher.
	for i := 0; i < 70; i++ {
		bus.Publish(EventAccessDecision, nil)
	}
	assert.GreaterOrEqual(t, bus.Dropped(), int64(1))

	close(block)
	bus.Close()
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(nil)

	rec := &recorder{}
	bus.Subscribe(EventAccessDecision, rec.handle)
	bus.Close()

	event := bus.Publish(EventAccessDecision, nil)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, 0, rec.count())

	// Close is idempotent.
	bus.Close()
}

func TestBusSubscribeAfterClose(t *testing.T) {
	bus := NewBus(nil)
	bus.Close()

	rec := &recorder{}
	bus.Subscribe(EventAccessDecision, rec.handle)
	bus.Publish(EventAccessDecision, nil)

	assert.Equal(t, 0, rec.count())
}
