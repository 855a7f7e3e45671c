package secondary

import "context"

// EventRecord is a lifecycle event as stored in the audit log.
type EventRecord struct {
	ID           int64
	Queue        string
	Kind         string
	Detail       string
	MessageCount int
	CreatedAt    string
}

// EventFilters contains filter options for querying the audit log.
type EventFilters struct {
	Queue string
	Limit int
}

// EventRepository is the append-only audit log of coordinator events.
// Best-effort history: write failures are logged by the caller and never
// abort a cycle (the session store, not this log, carries the
// correctness-critical state).
type EventRepository interface {
	// Append persists a new event.
	Append(ctx context.Context, rec *EventRecord) error

	// List retrieves events matching the given filters, newest first.
	List(ctx context.Context, filters EventFilters) ([]*EventRecord, error)
}
