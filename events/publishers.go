package events

import (
	"log/slog"
	"sync"
)

// Nop discards all events.
type Nop struct{}

var _ Publisher = Nop{}

// Publish implements Publisher.
func (Nop) Publish(Event) {}

// Log writes each event to a structured logger.
type Log struct {
	log *slog.Logger
}

var _ Publisher = (*Log)(nil)

// NewLog creates a publisher that logs events. A nil logger uses slog.Default.
func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{log: log.With("component", "events")}
}

// Publish implements Publisher.
func (l *Log) Publish(event Event) {
	attrs := []any{
		"type", string(event.Type),
		"workspace_id", event.WorkspaceID,
		"source_id", event.SourceID,
	}
	if event.Stage != "" {
		attrs = append(attrs, "stage", event.Stage)
	}
	if event.Detail != "" {
		attrs = append(attrs, "detail", event.Detail)
	}
	if event.Err != nil {
		attrs = append(attrs, "error", event.Err)
		l.log.Warn("pipeline event", attrs...)
		return
	}
	l.log.Info("pipeline event", attrs...)
}

// Collector records events in memory for tests.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

var _ Publisher = (*Collector)(nil)

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Publish implements Publisher.
func (c *Collector) Publish(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns a copy of everything published so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// OfType returns the published events with the given type, in order.
func (c *Collector) OfType(t Type) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
