// Package primary defines the primary ports (driving interfaces) for the
// coordinator application: the long-running control loop and the read-only
// query surface consumed by CLI front ends.
package primary

import (
	"context"
	"time"
)

// MonitorService is the query surface over current session and queue
// state, plus the single mutating call, ForceInvestigate.
type MonitorService interface {
	// ListSessions returns every known session, ordered by queue name.
	ListSessions(ctx context.Context) ([]*SessionView, error)

	// ListQueueSnapshots fetches live backlog counts for the configured
	// queues. Per-queue fetch failures appear as views with Err set.
	ListQueueSnapshots(ctx context.Context) ([]*QueueView, error)

	// ListEvents returns recent audit-log events, newest first.
	ListEvents(ctx context.Context, limit int) ([]*EventView, error)

	// ForceInvestigate requests an investigation for a queue regardless of
	// backlog. The threshold check is bypassed; cooldown and concurrency
	// limits still apply when the coordinator evaluates the request.
	ForceInvestigate(ctx context.Context, queue string) error
}

// SessionView is a session at the port boundary.
type SessionView struct {
	Queue        string
	State        string
	PID          int
	StartedAt    time.Time
	CompletedAt  time.Time
	LastOutcome  string
	TriggerCount int
	Forced       bool
}

// QueueView is a live queue reading at the port boundary.
type QueueView struct {
	Queue        string
	URL          string
	MessageCount int
	Err          string
}

// EventView is an audit-log entry at the port boundary.
type EventView struct {
	Queue        string
	Kind         string
	Detail       string
	MessageCount int
	CreatedAt    string
}
