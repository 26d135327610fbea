package orchestrator

import (
	"sync"
	"time"

	"chainpad/internal/logger"
)

// EventType identifies a lifecycle event
type EventType string

const (
	EventServiceStarting   EventType = "service_starting"
	EventServiceStarted    EventType = "service_started"
	EventServiceHealthy    EventType = "service_healthy"
	EventServiceUnhealthy  EventType = "service_unhealthy"
	EventServiceRestarting EventType = "service_restarting"
	EventServiceStopping   EventType = "service_stopping"
	EventServiceStopped    EventType = "service_stopped"
	EventServiceFailed     EventType = "service_failed"
	EventNetworkReady      EventType = "network_ready"
	EventNetworkStopped    EventType = "network_stopped"
)

// Event is a lifecycle notification published by the orchestrator
type Event struct {
	Type    EventType `json:"type"`
	Service string    `json:"service,omitempty"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

const eventBufferSize = 100

// Bus fans lifecycle events out to subscribers. Publishing never blocks:
// a subscriber that falls more than eventBufferSize events behind loses
// the overflow.
type Bus struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewBus creates an event bus
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber. The channel is closed on
// Unsubscribe or when the bus shuts down.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, eventBufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		if sub == ch {
			delete(b.subs, sub)
			close(sub)
			return
		}
	}
}

// Publish delivers an event to all subscribers without blocking
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			logger.WithFields(logger.Fields{
				"type":    string(event.Type),
				"service": event.Service,
			}).Debug("Dropped event for slow subscriber")
		}
	}
}

// Close shuts the bus down and closes all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}
