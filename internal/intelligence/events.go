package intelligence

import (
	"sync"
	"time"

	"patternmind/internal/logging"
)

// EventType classifies a state-change notification.
type EventType string

const (
	EventPatternAdded     EventType = "pattern_added"
	EventPatternUsed      EventType = "pattern_used"
	EventSessionCompleted EventType = "session_completed"
	EventInsightsUpdated  EventType = "insights_updated"
)

// Event is one state-change notification. ID names the affected entity
// (pattern id, session id) when one applies.
type Event struct {
	Type EventType `json:"type"`
	ID   string    `json:"id,omitempty"`
	At   time.Time `json:"at"`
}

// Listener receives published events. Delivery is at-least-once and
// order-insensitive; listeners must tolerate duplicates and must not block
// for long, one slow listener delays the rest of its batch.
type Listener func(Event)

// Bus fans out state-change events to registered listeners. Each publish
// is delivered on its own goroutine so publishers never block on listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
	closed    bool

	wg sync.WaitGroup
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a listener for all subsequent events. There is no
// unsubscribe; the bus lives as long as the coordinator.
func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Publish delivers the event to every registered listener asynchronously.
// Events published after Close are dropped.
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	targets := make([]Listener, len(b.listeners))
	copy(targets, b.listeners)
	b.wg.Add(1)
	b.mu.RUnlock()

	if len(targets) == 0 {
		b.wg.Done()
		return
	}

	logging.Get(logging.CategoryCoordinator).Debug("Publishing %s (id=%s) to %d listeners", event.Type, event.ID, len(targets))
	go func() {
		defer b.wg.Done()
		for _, l := range targets {
			l(event)
		}
	}()
}

// Close stops accepting events and waits for in-flight deliveries.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}
