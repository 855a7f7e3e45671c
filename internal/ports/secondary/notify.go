package secondary

import "time"

// EventKind classifies coordinator lifecycle events.
type EventKind string

// Event kinds.
const (
	EventTriggered EventKind = "triggered"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventTimedOut  EventKind = "timed_out"
	EventDegraded  EventKind = "degraded"
)

// Event describes one coordinator lifecycle transition.
type Event struct {
	Kind         EventKind
	Queue        string
	Detail       string
	MessageCount int
	At           time.Time
}

// Notifier delivers events to an external channel. Fire-and-forget:
// implementations must never block the coordinator loop, and delivery
// failures are logged, never fatal.
type Notifier interface {
	Notify(e Event)
}
