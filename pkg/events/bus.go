// Package events provides the in-process event bus the engine uses for
// fire-and-forget notifications. Delivery is at-most-once: publishing never
// blocks on subscriber processing, and events to a saturated subscriber are
// dropped and counted.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the engine.
const (
	EventAccessDecision          = "access_decision"
	EventTrustScoreUpdated       = "trust_score_updated"
	EventPolicyAdded             = "policy_added"
	EventPolicyRemoved           = "policy_removed"
	EventSegmentCreated          = "segment_created"
	EventAgentQuarantined        = "agent_quarantined"
	EventAgentReleased           = "agent_released"
	EventPolicyViolations        = "policy_violations"
	EventSegmentValidationFailed = "segment_validation_failed"
	EventMetricsCollected        = "metrics_collected"
	EventRequireReauthentication = "require_reauthentication"
	EventRestrictCapabilities    = "restrict_capabilities"
	EventAlertAdmin              = "alert_admin"
)

// Event is a named notification with a free-form payload.
type Event struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// Handler processes a delivered event. Handlers run on the subscriber's own
// goroutine and must not be assumed to see every published event.
type Handler func(Event)

type subscriber struct {
	name string // event name or "*" for all
	ch   chan Event
}

// Bus fans events out to subscribers.
type Bus struct {
	subscribers []*subscriber
	mu          sync.RWMutex
	closed      bool
	dropped     atomic.Int64
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// NewBus creates an event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger.With("component", "event-bus")}
}

// Subscribe registers a handler for events with the given name. The name "*"
// subscribes to all events.
func (b *Bus) Subscribe(name string, handler Handler) {
	sub := &subscriber{
		name: name,
		ch:   make(chan Event, 64),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for event := range sub.ch {
			handler(event)
		}
	}()
}

// Publish delivers an event to matching subscribers without blocking. Returns
// the published event for callers that want its generated id.
func (b *Bus) Publish(name string, payload map[string]interface{}) Event {
	event := Event{
		ID:        uuid.NewString(),
		Name:      name,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return event
	}

	for _, sub := range b.subscribers {
		if sub.name != "*" && sub.name != name {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
			b.logger.Warn("dropping event for slow subscriber",
				"event", name, "subscriber", sub.name)
		}
	}
	return event
}

// Dropped returns the number of events dropped due to slow subscribers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops delivery and waits for in-flight handlers to finish.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.mu.Unlock()

	b.wg.Wait()
}
