// Package heartbeat periodically nudges the agent with a synthetic
// prompt. Asynchronous happenings (cron fires, background command
// completions) land in a small event buffer that the next heartbeat
// drains and folds into its prompt.
package heartbeat

import (
	"sync"
	"time"
)

// Event types.
const (
	EventExec = "exec"
	EventCron = "cron"
)

// SystemEvent is one buffered happening awaiting the next heartbeat.
type SystemEvent struct {
	Text      string
	Type      string
	Timestamp time.Time
}

// eventCap bounds the buffer; oldest entries are evicted on overflow.
const eventCap = 20

// EventBuffer is a process-wide bounded FIFO of system events. All
// methods are safe for concurrent use; Drain observes a single
// point-in-time snapshot.
type EventBuffer struct {
	mu     sync.Mutex
	events []SystemEvent
}

func NewEventBuffer() *EventBuffer {
	return &EventBuffer{}
}

// Enqueue appends an event, evicting the oldest when full.
func (b *EventBuffer) Enqueue(text, eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) >= eventCap {
		b.events = b.events[1:]
	}
	b.events = append(b.events, SystemEvent{Text: text, Type: eventType, Timestamp: time.Now()})
}

// Drain returns all buffered events in insertion order and clears the
// buffer in the same critical section.
func (b *EventBuffer) Drain() []SystemEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// Clear empties the buffer without returning anything.
func (b *EventBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// Len reports the current number of buffered events.
func (b *EventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
