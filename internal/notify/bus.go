// Package notify carries core notifications to external subscribers
// (loggers, alert dispatchers, UI layers). The core publishes; it never
// dictates how subscribers render events.
package notify

import (
	"sync"
	"time"
)

// Notification names published by the core components.
const (
	BoundaryInitialized = "boundary.initialized"
	BoundarySealed      = "boundary.sealed"
	BoundaryViolation   = "boundary.violation"
	BoundaryReinforced  = "boundary.reinforced"

	GuardianStarted   = "guardian.started"
	GuardianViolation = "guardian.violation"
	GuardianCritical  = "guardian.critical"
	GuardianHealing   = "guardian.healing"
	GuardianHealed    = "guardian.healed"
	GuardianStopped   = "guardian.stopped"

	CovenantSworn     = "covenant.sworn"
	CovenantSealed    = "covenant.sealed"
	CovenantActivated = "covenant.activated"
	CovenantViolation = "covenant.violation"
	CovenantWitnessed = "covenant.witnessed"
)

// Event is one notification.
type Event struct {
	Name   string         `json:"name"`
	At     time.Time      `json:"at"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Bus fans events out to channel subscribers. Publish never blocks: a
// subscriber whose buffer is full misses that event, so subscribers
// that cannot afford gaps size their buffer generously and drain fast.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber with the given buffer size and
// returns its channel plus a cancel function. Cancel is idempotent and
// closes the channel. Subscribing to a closed bus yields an already
// closed channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber with buffer space.
func (b *Bus) Publish(name string, fields map[string]any) {
	ev := Event{Name: name, At: time.Now().UTC(), Fields: fields}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close drops all subscriptions and closes their channels. Publishing
// to a closed bus is a no-op.
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
