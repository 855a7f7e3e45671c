package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/dlqwatch/internal/core/gate"
	"github.com/example/dlqwatch/internal/core/session"
	"github.com/example/dlqwatch/internal/ports/primary"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

// CoordinatorOptions configures the control loop.
type CoordinatorOptions struct {
	Queues               []string
	DiscoverQueues       bool
	Region               string
	Policy               gate.Policy
	PollInterval         time.Duration
	InvestigationTimeout time.Duration
}

// CoordinatorImpl implements the Coordinator interface: one poll cycle at
// a time over all monitored queues, with the session store as the single
// source of truth for lifecycle state.
type CoordinatorImpl struct {
	store    secondary.SessionStore
	reader   secondary.QueueReader
	runner   secondary.InvestigationRunner
	events   secondary.EventRepository
	notifier secondary.Notifier
	opts     CoordinatorOptions

	queues   []string
	excluded map[string]bool

	now func() time.Time
}

// NewCoordinator creates a Coordinator with injected dependencies.
func NewCoordinator(
	store secondary.SessionStore,
	reader secondary.QueueReader,
	runner secondary.InvestigationRunner,
	events secondary.EventRepository,
	notifier secondary.Notifier,
	opts CoordinatorOptions,
) *CoordinatorImpl {
	return &CoordinatorImpl{
		store:    store,
		reader:   reader,
		runner:   runner,
		events:   events,
		notifier: notifier,
		opts:     opts,
		queues:   append([]string(nil), opts.Queues...),
		excluded: make(map[string]bool),
		now:      time.Now,
	}
}

// Run drives the control loop until ctx is cancelled or the session store
// fails. Store failures are fatal: continuing with unreliable persistence
// could start a second investigation for a queue that already has one.
func (c *CoordinatorImpl) Run(ctx context.Context) error {
	if c.opts.DiscoverQueues {
		c.discover(ctx)
	}
	log.Printf("coordinator: monitoring %d queue(s), poll interval %s", len(c.queues), c.opts.PollInterval)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := c.runCycle(ctx); err != nil {
			c.shutdown()
			return err
		}
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// discover merges account queues matching the DLQ patterns into the
// monitored set. Discovery failure degrades to the configured queues.
func (c *CoordinatorImpl) discover(ctx context.Context) {
	refs, err := c.reader.DiscoverQueues(ctx)
	if err != nil {
		log.Printf("coordinator: queue discovery failed: %v", err)
		return
	}
	known := make(map[string]bool, len(c.queues))
	for _, q := range c.queues {
		known[q] = true
	}
	for _, ref := range refs {
		if !known[ref.Name] {
			known[ref.Name] = true
			c.queues = append(c.queues, ref.Name)
			log.Printf("coordinator: discovered queue %s", ref.Name)
		}
	}
}

// runCycle executes one poll cycle: fetch backlog counts, supervise
// running investigations, evaluate the gate, dispatch winners, and sweep
// expired cooldowns. Supervision runs before dispatch so a completion
// frees its slot within the same cycle. Only session store failures
// propagate; every other failure is contained to its queue.
func (c *CoordinatorImpl) runCycle(ctx context.Context) error {
	now := c.now()

	snapshots, failures := c.reader.FetchSnapshots(ctx, c.activeQueues())
	for queue, err := range failures {
		if secondary.IsConfiguration(err) {
			c.excluded[queue] = true
			log.Printf("coordinator: excluding queue %s: %v", queue, err)
			c.emit(ctx, secondary.Event{
				Kind:   secondary.EventDegraded,
				Queue:  queue,
				Detail: fmt.Sprintf("excluded from monitoring: %v", err),
				At:     now,
			})
			continue
		}
		// Transient failure: the queue is skipped this cycle only.
		log.Printf("coordinator: read failed for queue %s: %v", queue, err)
	}

	if err := c.applyForces(snapshots); err != nil {
		return err
	}
	if err := c.supervise(ctx); err != nil {
		return err
	}

	candidates := c.evaluate(snapshots, now)
	if err := c.dispatch(ctx, candidates, now); err != nil {
		return err
	}
	return c.sweep(snapshots)
}

// applyForces drains operator force requests and marks their sessions
// Triggered with the threshold bypass set. The mark is persisted so a
// force survives a coordinator restart.
func (c *CoordinatorImpl) applyForces(snapshots map[string]secondary.QueueSnapshot) error {
	forces, err := c.store.PendingForces()
	if err != nil {
		log.Printf("coordinator: failed to read force requests: %v", err)
		return nil
	}
	for _, queue := range forces {
		sess := c.store.Get(queue)
		if sess == nil {
			sess = session.New(queue)
		}
		count := sess.TriggerCount
		if snap, ok := snapshots[queue]; ok {
			count = snap.MessageCount
		}
		if err := sess.Trigger(count, true); err != nil {
			log.Printf("coordinator: force request for %s ignored: %v", queue, err)
			continue
		}
		if err := c.store.Upsert(sess); err != nil {
			return fmt.Errorf("failed to persist forced session %s: %w", queue, err)
		}
		log.Printf("coordinator: investigation forced for queue %s", queue)
	}
	return nil
}

// evaluate runs the gate over this cycle's snapshots and returns the
// start candidates. A queue blocked only by the concurrency limit is
// still a candidate; slot allocation decides who actually starts.
func (c *CoordinatorImpl) evaluate(snapshots map[string]secondary.QueueSnapshot, now time.Time) []gate.Candidate {
	running := len(c.store.AllRunning())

	var candidates []gate.Candidate
	for queue, snap := range snapshots {
		sess := c.store.Get(queue)
		dec := gate.Decide(sess, snap.MessageCount, running, c.opts.Policy, now)
		if !dec.Start && dec.Reason != gate.ReasonConcurrencyLimit {
			continue
		}
		candidates = append(candidates, gate.Candidate{
			Queue:        queue,
			MessageCount: snap.MessageCount,
			Forced:       sess != nil && sess.Forced,
		})
	}
	return candidates
}

// dispatch starts investigations for as many candidates as free slots
// allow, largest backlog first. Deferred candidates are persisted as
// Triggered so they compete again next cycle; a failed spawn reverts its
// session to Idle rather than wedging it.
func (c *CoordinatorImpl) dispatch(ctx context.Context, candidates []gate.Candidate, now time.Time) error {
	freeSlots := c.opts.Policy.MaxConcurrent - len(c.store.AllRunning())
	starting, deferred := gate.AllocateSlots(candidates, freeSlots)

	for _, cand := range deferred {
		sess := c.sessionFor(cand.Queue)
		if err := sess.Trigger(cand.MessageCount, cand.Forced); err != nil {
			log.Printf("coordinator: cannot defer %s: %v", cand.Queue, err)
			continue
		}
		if err := c.store.Upsert(sess); err != nil {
			return fmt.Errorf("failed to persist deferred session %s: %w", cand.Queue, err)
		}
	}

	for _, cand := range starting {
		sess := c.sessionFor(cand.Queue)
		if err := sess.Trigger(cand.MessageCount, cand.Forced); err != nil {
			log.Printf("coordinator: cannot trigger %s: %v", cand.Queue, err)
			continue
		}
		if err := c.store.Upsert(sess); err != nil {
			return fmt.Errorf("failed to persist triggered session %s: %w", cand.Queue, err)
		}

		handle, err := c.runner.Start(ctx, secondary.InvestigationParams{
			Queue:        cand.Queue,
			MessageCount: cand.MessageCount,
			Region:       c.opts.Region,
			Timeout:      c.opts.InvestigationTimeout,
		})
		if err != nil {
			log.Printf("coordinator: failed to start investigation for %s: %v", cand.Queue, err)
			if derr := sess.ToIdle(); derr != nil {
				log.Printf("coordinator: cannot reset %s after spawn failure: %v", cand.Queue, derr)
			}
			if perr := c.store.Upsert(sess); perr != nil {
				return fmt.Errorf("failed to persist session %s after spawn failure: %w", cand.Queue, perr)
			}
			c.emit(ctx, secondary.Event{
				Kind:   secondary.EventDegraded,
				Queue:  cand.Queue,
				Detail: fmt.Sprintf("spawn failed: %v", err),
				At:     now,
			})
			continue
		}

		if err := sess.MarkRunning(*handle, now); err != nil {
			log.Printf("coordinator: cannot mark %s running: %v", cand.Queue, err)
			continue
		}
		if err := c.store.Upsert(sess); err != nil {
			return fmt.Errorf("failed to persist running session %s: %w", cand.Queue, err)
		}

		log.Printf("coordinator: investigation started for %s (pid %d, %d messages)", cand.Queue, handle.PID, cand.MessageCount)
		c.emit(ctx, secondary.Event{
			Kind:         secondary.EventTriggered,
			Queue:        cand.Queue,
			Detail:       fmt.Sprintf("pid %d", handle.PID),
			MessageCount: cand.MessageCount,
			At:           now,
		})
	}
	return nil
}

// supervise polls every Running session once and records terminal
// statuses. Each terminal status is observed exactly once: the transition
// and its event are recorded in the same pass that saw the status.
func (c *CoordinatorImpl) supervise(ctx context.Context) error {
	for _, sess := range c.store.AllRunning() {
		if sess.Handle == nil {
			continue
		}
		status := c.runner.Poll(sess.Handle)
		now := c.now()

		switch status.Kind {
		case secondary.StatusRunning:
			continue

		case secondary.StatusExited:
			outcome := session.OutcomeSuccess
			kind := secondary.EventCompleted
			detail := "exit code 0"
			if status.ExitCode != 0 {
				outcome = session.OutcomeFailure
				kind = secondary.EventFailed
				detail = fmt.Sprintf("exit code %d", status.ExitCode)
			}
			if err := sess.Complete(outcome, now); err != nil {
				log.Printf("coordinator: cannot complete %s: %v", sess.Queue, err)
				continue
			}
			if err := c.store.Upsert(sess); err != nil {
				return fmt.Errorf("failed to persist completed session %s: %w", sess.Queue, err)
			}
			log.Printf("coordinator: investigation for %s finished: %s", sess.Queue, detail)
			c.emit(ctx, secondary.Event{Kind: kind, Queue: sess.Queue, Detail: detail, At: now})

		case secondary.StatusTimedOut:
			if err := c.runner.Terminate(sess.Handle); err != nil {
				log.Printf("coordinator: failed to terminate %s: %v", sess.Queue, err)
			}
			if err := sess.Complete(session.OutcomeTimeout, now); err != nil {
				log.Printf("coordinator: cannot complete %s: %v", sess.Queue, err)
				continue
			}
			if err := c.store.Upsert(sess); err != nil {
				return fmt.Errorf("failed to persist timed-out session %s: %w", sess.Queue, err)
			}
			detail := fmt.Sprintf("terminated after %s", c.opts.InvestigationTimeout)
			log.Printf("coordinator: investigation for %s timed out", sess.Queue)
			c.emit(ctx, secondary.Event{Kind: secondary.EventTimedOut, Queue: sess.Queue, Detail: detail, At: now})
		}
	}
	return nil
}

// sweep returns sessions to Idle when their cooldown window has elapsed,
// and clears deferred candidates whose queue drained below the threshold
// before a slot opened up.
func (c *CoordinatorImpl) sweep(snapshots map[string]secondary.QueueSnapshot) error {
	now := c.now()
	for _, sess := range c.store.All() {
		switch sess.State {
		case session.StateCooldown:
			if now.Sub(sess.CompletedAt) < c.opts.Policy.CooldownFor(sess.LastOutcome) {
				continue
			}
		case session.StateTriggered:
			snap, ok := snapshots[sess.Queue]
			if !ok || sess.Forced || snap.MessageCount >= c.opts.Policy.TriggerThreshold {
				continue
			}
		default:
			continue
		}
		if err := sess.ToIdle(); err != nil {
			log.Printf("coordinator: cannot reset %s: %v", sess.Queue, err)
			continue
		}
		if err := c.store.Upsert(sess); err != nil {
			return fmt.Errorf("failed to persist idle session %s: %w", sess.Queue, err)
		}
	}
	return nil
}

// shutdown terminates live investigations and records them as Failed with
// an Unknown outcome. An unsupervised investigation must not survive the
// coordinator that would have collected its result.
func (c *CoordinatorImpl) shutdown() {
	now := c.now()
	for _, sess := range c.store.AllRunning() {
		if sess.Handle != nil {
			if err := c.runner.Terminate(sess.Handle); err != nil {
				log.Printf("coordinator: failed to terminate %s during shutdown: %v", sess.Queue, err)
			}
		}
		if err := sess.Fail(session.OutcomeUnknown, now); err != nil {
			log.Printf("coordinator: cannot fail %s during shutdown: %v", sess.Queue, err)
			continue
		}
		if err := c.store.Upsert(sess); err != nil {
			log.Printf("coordinator: failed to persist %s during shutdown: %v", sess.Queue, err)
		}
	}
}

// activeQueues returns monitored queues minus the excluded ones.
func (c *CoordinatorImpl) activeQueues() []string {
	out := make([]string, 0, len(c.queues))
	for _, q := range c.queues {
		if !c.excluded[q] {
			out = append(out, q)
		}
	}
	return out
}

func (c *CoordinatorImpl) sessionFor(queue string) *session.Session {
	if sess := c.store.Get(queue); sess != nil {
		return sess
	}
	return session.New(queue)
}

// emit records an event in the audit log and notifies the operator.
// Best-effort on both paths.
func (c *CoordinatorImpl) emit(ctx context.Context, e secondary.Event) {
	if c.events != nil {
		rec := &secondary.EventRecord{
			Queue:        e.Queue,
			Kind:         string(e.Kind),
			Detail:       e.Detail,
			MessageCount: e.MessageCount,
			CreatedAt:    e.At.UTC().Format(time.RFC3339),
		}
		if err := c.events.Append(ctx, rec); err != nil {
			log.Printf("coordinator: failed to record %s event for %s: %v", e.Kind, e.Queue, err)
		}
	}
	if c.notifier != nil {
		c.notifier.Notify(e)
	}
}

// Ensure CoordinatorImpl implements the interface
var _ primary.Coordinator = (*CoordinatorImpl)(nil)
