package alert

import (
	"context"

	"github.com/wardkeep/wardkeep/internal/notify"
)

// Dispatcher fans out alert events to matching webhook configurations.
type Dispatcher struct {
	configs []Config
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []Config) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs}
}

// Dispatch sends the event to all webhooks whose Events list names it.
// Fires goroutines and does not block the caller.
func (d *Dispatcher) Dispatch(event Event) {
	for _, cfg := range d.configs {
		if matches(cfg.Events, event.Name) {
			go Send(cfg, event)
		}
	}
}

// Forward consumes bus notifications until ctx is done or the channel
// closes, dispatching each one that a webhook subscribes to.
func (d *Dispatcher) Forward(ctx context.Context, ch <-chan notify.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			d.Dispatch(FromNotification(n))
		}
	}
}

func matches(events []string, name string) bool {
	for _, e := range events {
		if e == name || e == "*" {
			return true
		}
	}
	return false
}
