// Package events carries pipeline notifications: plan lifecycle, step
// progress, streamed chunks, interruptions and routing decisions. Events are
// telemetry for presentation layers, not control flow; nothing in the
// pipeline ever blocks on a subscriber.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Type names one pipeline notification kind.
type Type string

const (
	PlanCreated     Type = "plan_created"
	PlanStarted     Type = "plan_started"
	StepStarted     Type = "step_started"
	StepCompleted   Type = "step_completed"
	PlanPaused      Type = "plan_paused"
	PlanResumed     Type = "plan_resumed"
	PlanCompleted   Type = "plan_completed"
	PlanFailed      Type = "plan_failed"
	UserInterrupted Type = "user_interrupted"
	ResponseChunk   Type = "response_chunk"
	RoutingDecision Type = "routing_decision"
	PlanAdapted     Type = "plan_adapted"
)

// Event is one pipeline notification.
type Event struct {
	Type      Type           `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	PlanID    string         `json:"plan_id,omitempty"`
	StepID    string         `json:"step_id,omitempty"`
	Worker    string         `json:"worker,omitempty"`
	Text      string         `json:"text,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Config controls per-subscriber buffering.
type Config struct {
	Buffer int `json:"buffer" yaml:"buffer"`
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() Config {
	return Config{Buffer: 64}
}

// Bus fans events out to subscribers without blocking the publisher. A
// subscriber that falls behind loses events rather than stalling the
// pipeline.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	closed  bool
	buffer  int
	dropped atomic.Uint64
	logger  *zap.Logger
}

// NewBus creates an event bus.
func NewBus(config Config, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		buffer: config.Buffer,
		logger: logger.With(zap.String("component", "event_bus")),
	}
}

// Subscribe registers a subscriber and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe and on bus
// close; unsubscribing twice is harmless.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Publish delivers event to every subscriber with buffer room and drops it
// for those without. A zero timestamp is stamped with the current time.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
			b.logger.Debug("subscriber buffer full, event dropped",
				zap.String("type", string(event.Type)),
				zap.String("session_id", event.SessionID),
			)
		}
	}
}

// Dropped returns how many events were lost to full subscriber buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel and disables further publishing.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
