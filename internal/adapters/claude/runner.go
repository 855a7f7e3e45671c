// Package claude runs dead-letter queue investigations by spawning the
// claude CLI as a supervised child process, one per queue.
package claude

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/dlqwatch/internal/core/session"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

// terminateGrace is how long Terminate waits between SIGTERM and SIGKILL.
const terminateGrace = 5 * time.Second

type proc struct {
	queue     string
	cmd       *exec.Cmd
	logFile   *os.File
	startedAt time.Time
	timeout   time.Duration

	done     chan struct{} // closed when the process exits
	exitCode int           // valid once done is closed
}

// Runner spawns and supervises investigation processes. Process exits are
// collected by a background goroutine per process; Poll never blocks.
type Runner struct {
	command string
	args    []string
	workDir string
	logDir  string

	mu      sync.Mutex
	byRun   map[string]*proc
	byQueue map[string]string // queue -> run ID

	now func() time.Time
}

// NewRunner creates a Runner. command and args come from configuration
// (typically "claude" with "-p"); logDir receives one log file per run.
func NewRunner(command string, args []string, workDir, logDir string) *Runner {
	return &Runner{
		command: command,
		args:    args,
		workDir: workDir,
		logDir:  logDir,
		byRun:   make(map[string]*proc),
		byQueue: make(map[string]string),
		now:     time.Now,
	}
}

// Start spawns the investigation tool for a queue. At most one live
// process per queue; a second Start for the same queue fails with
// DuplicateInvestigationError.
func (r *Runner) Start(ctx context.Context, params secondary.InvestigationParams) (*session.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if runID, ok := r.byQueue[params.Queue]; ok {
		if p := r.byRun[runID]; p != nil && !exited(p) {
			return nil, &secondary.DuplicateInvestigationError{Queue: params.Queue}
		}
	}

	runID := uuid.New().String()

	if err := os.MkdirAll(r.logDir, 0755); err != nil {
		return nil, &secondary.ProcessSpawnError{Queue: params.Queue, Err: err}
	}
	logPath := filepath.Join(r.logDir, fmt.Sprintf("%s-%s.log", params.Queue, runID[:8]))
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, &secondary.ProcessSpawnError{Queue: params.Queue, Err: err}
	}

	args := append(append([]string(nil), r.args...), buildPrompt(params))
	cmd := exec.Command(r.command, args...)
	cmd.Dir = r.workDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		os.Remove(logPath)
		return nil, &secondary.ProcessSpawnError{Queue: params.Queue, Err: err}
	}

	p := &proc{
		queue:     params.Queue,
		cmd:       cmd,
		logFile:   logFile,
		startedAt: r.now(),
		timeout:   params.Timeout,
		done:      make(chan struct{}),
	}
	r.byRun[runID] = p
	r.byQueue[params.Queue] = runID

	go reap(p)

	return &session.Handle{RunID: runID, PID: cmd.Process.Pid}, nil
}

// reap waits for the process and records its exit code.
func reap(p *proc) {
	err := p.cmd.Wait()
	p.exitCode = exitCodeOf(err)
	p.logFile.Close()
	close(p.done)
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

func exited(p *proc) bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Poll reports the status of one run without blocking. A run past its
// wall-clock deadline reports TimedOut even though the process is still
// alive; the caller is expected to Terminate it. Terminal statuses drop
// the run from tracking, so they are observed exactly once.
func (r *Runner) Poll(h *session.Handle) secondary.ProcessStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byRun[h.RunID]
	if !ok {
		return secondary.ProcessStatus{Kind: secondary.StatusExited, ExitCode: -1}
	}
	if exited(p) {
		r.forget(h.RunID, p)
		return secondary.ProcessStatus{Kind: secondary.StatusExited, ExitCode: p.exitCode}
	}
	if p.timeout > 0 && r.now().Sub(p.startedAt) >= p.timeout {
		return secondary.ProcessStatus{Kind: secondary.StatusTimedOut}
	}
	return secondary.ProcessStatus{Kind: secondary.StatusRunning}
}

// Terminate stops a run: SIGTERM first, SIGKILL after a grace period. The
// run is dropped from tracking either way.
func (r *Runner) Terminate(h *session.Handle) error {
	r.mu.Lock()
	p, ok := r.byRun[h.RunID]
	if ok {
		r.forget(h.RunID, p)
	}
	r.mu.Unlock()

	if !ok || exited(p) {
		return nil
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone between the exited check and the signal.
		return nil
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(terminateGrace):
	}
	if err := p.cmd.Process.Kill(); err != nil && !exited(p) {
		return fmt.Errorf("failed to kill investigation for %s: %w", p.queue, err)
	}
	<-p.done
	return nil
}

// forget removes a run from tracking. Caller holds r.mu.
func (r *Runner) forget(runID string, p *proc) {
	delete(r.byRun, runID)
	if r.byQueue[p.queue] == runID {
		delete(r.byQueue, p.queue)
	}
}

// buildPrompt assembles the investigation brief handed to the tool.
func buildPrompt(params secondary.InvestigationParams) string {
	return fmt.Sprintf(`Investigate the AWS SQS dead-letter queue %q in region %s. It currently holds %d message(s).

1. Sample messages from the DLQ and identify the failure pattern.
2. Trace the root cause in the owning service's code or configuration.
3. Propose and, where safe, apply a fix; open a pull request for code changes.
4. Redrive or purge the dead-lettered messages once the cause is addressed.

Summarize the root cause, the fix, and the final state of the queue.`,
		params.Queue, params.Region, params.MessageCount)
}

// Ensure Runner implements the interface.
var _ secondary.InvestigationRunner = (*Runner)(nil)
