package secondary

import "github.com/example/dlqwatch/internal/core/session"

// SessionStore is the durable mapping from queue name to investigation
// session. The store is the sole owner of session records; implementations
// must persist atomically on every Upsert so a crash never leaves a
// half-written document.
type SessionStore interface {
	// Get returns the session for a queue, or nil if none exists yet.
	Get(queue string) *session.Session

	// Upsert persists a session atomically. Persistence failures here are
	// process-fatal to the caller: continuing with an unreliable store
	// would break the at-most-one-running invariant.
	Upsert(sess *session.Session) error

	// All returns every known session.
	All() []*session.Session

	// AllRunning returns sessions in Running state, used to enforce the
	// global concurrency invariant.
	AllRunning() []*session.Session

	// RequestForce records an operator request to investigate a queue
	// regardless of backlog. Picked up by the coordinator on its next
	// cycle via PendingForces. Safe to call from a separate process while
	// the coordinator holds the store lock.
	RequestForce(queue string) error

	// PendingForces drains and returns outstanding force requests.
	PendingForces() ([]string, error)
}
