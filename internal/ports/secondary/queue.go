// Package secondary defines the secondary ports (driven interfaces) for
// the coordinator: queue state, session persistence, process supervision,
// event history, and notification delivery.
package secondary

import (
	"context"
	"time"
)

// QueueRef identifies a queue discovered in the account.
type QueueRef struct {
	Name string
	URL  string
}

// QueueSnapshot is one backlog reading for one queue.
type QueueSnapshot struct {
	QueueName    string
	QueueURL     string
	MessageCount int
	FetchedAt    time.Time
}

// QueueReader provides backlog counts for dead-letter queues.
type QueueReader interface {
	// FetchSnapshots reads current backlog counts for the named queues.
	// Results and failures are reported per queue; a failing queue never
	// suppresses readings for the others. Failures are TransientReadError
	// or ConfigurationError values.
	FetchSnapshots(ctx context.Context, queues []string) (map[string]QueueSnapshot, map[string]error)

	// DiscoverQueues lists account queues whose names look like DLQs.
	DiscoverQueues(ctx context.Context) ([]QueueRef, error)
}
