package secondary

import (
	"context"
	"time"

	"github.com/example/dlqwatch/internal/core/session"
)

// ProcessStatusKind classifies the state of a supervised process.
type ProcessStatusKind string

// Process status kinds.
const (
	StatusRunning  ProcessStatusKind = "running"
	StatusExited   ProcessStatusKind = "exited"
	StatusTimedOut ProcessStatusKind = "timed_out"
)

// ProcessStatus is a non-blocking view of a supervised process.
type ProcessStatus struct {
	Kind     ProcessStatusKind
	ExitCode int // valid when Kind == StatusExited
}

// InvestigationParams carries the context handed to the external tool.
type InvestigationParams struct {
	Queue        string
	MessageCount int
	Region       string
	Timeout      time.Duration
}

// InvestigationRunner owns the mechanical lifecycle of one external
// investigation process per queue: spawn, non-blocking status, forced
// termination. Policy (cooldown, concurrency) is not its job; the gate
// decides upstream.
type InvestigationRunner interface {
	// Start spawns the external tool for a queue. Returns
	// DuplicateInvestigationError if a live process already exists for the
	// queue, or ProcessSpawnError if the tool could not be launched.
	Start(ctx context.Context, params InvestigationParams) (*session.Handle, error)

	// Poll returns the current status without waiting. Timeout detection
	// combines the exit check with a wall-clock deadline so a hung process
	// is reported TimedOut even though it never exits. A handle the runner
	// no longer tracks reports Exited with code -1.
	Poll(h *session.Handle) ProcessStatus

	// Terminate forcibly stops a process: SIGTERM, then SIGKILL after a
	// short grace period.
	Terminate(h *session.Handle) error
}
