package alert

import (
	"time"

	"github.com/wardkeep/wardkeep/internal/notify"
)

// Config defines a webhook alert destination.
type Config struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // notification names, e.g. ["guardian.critical"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event is the payload sent to webhook endpoints.
type Event struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	EntityID  string `json:"entity_id,omitempty"`
	Type      string `json:"type,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Source    string `json:"source,omitempty"`
	Target    string `json:"target,omitempty"`
	Operation string `json:"operation,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// FromNotification flattens a bus notification into a webhook event.
func FromNotification(n notify.Event) Event {
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	ev := Event{
		Timestamp: at.UTC().Format("2006-01-02T15:04:05.000Z"),
		Name:      n.Name,
	}
	ev.EntityID = field(n, "entity_id")
	ev.Type = field(n, "type")
	ev.Severity = field(n, "severity")
	ev.Source = field(n, "source")
	ev.Target = field(n, "target")
	ev.Operation = field(n, "operation")
	ev.Detail = field(n, "detail")
	return ev
}

func field(n notify.Event, key string) string {
	if n.Fields == nil {
		return ""
	}
	s, _ := n.Fields[key].(string)
	return s
}
