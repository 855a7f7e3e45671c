package primary

import "context"

// Coordinator drives the monitoring control loop: poll queue state,
// evaluate the gate, dispatch and supervise investigations, persist
// session transitions, and emit events. Run blocks until ctx is cancelled
// or the session store fails.
type Coordinator interface {
	Run(ctx context.Context) error
}
