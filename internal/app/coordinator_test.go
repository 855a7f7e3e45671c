package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/dlqwatch/internal/core/gate"
	"github.com/example/dlqwatch/internal/core/session"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

type coordinatorFixture struct {
	coord    *CoordinatorImpl
	store    *mockSessionStore
	reader   *mockQueueReader
	runner   *mockRunner
	events   *mockEventRepo
	notifier *mockNotifier
	now      time.Time
}

func newCoordinatorFixture(queues ...string) *coordinatorFixture {
	f := &coordinatorFixture{
		store:    newMockSessionStore(),
		reader:   newMockQueueReader(),
		runner:   newMockRunner(),
		events:   &mockEventRepo{},
		notifier: &mockNotifier{},
		now:      time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	f.coord = NewCoordinator(f.store, f.reader, f.runner, f.events, f.notifier, CoordinatorOptions{
		Queues: queues,
		Region: "us-east-1",
		Policy: gate.Policy{
			TriggerThreshold: 5,
			Cooldown:         60 * time.Minute,
			MaxConcurrent:    3,
		},
		PollInterval:         30 * time.Second,
		InvestigationTimeout: 30 * time.Minute,
	})
	f.coord.now = func() time.Time { return f.now }
	return f
}

func (f *coordinatorFixture) cycle(t *testing.T) {
	t.Helper()
	if err := f.coord.runCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
}

func (f *coordinatorFixture) mustState(t *testing.T, queue string, want session.State) {
	t.Helper()
	sess := f.store.Get(queue)
	if sess == nil {
		t.Fatalf("no session for %s", queue)
	}
	if sess.State != want {
		t.Fatalf("expected %s in state %q, got %q", queue, want, sess.State)
	}
}

func TestCoordinator_TriggersAboveThreshold(t *testing.T) {
	f := newCoordinatorFixture("orders-dlq")
	f.reader.setCount("orders-dlq", 12)

	f.cycle(t)

	if len(f.runner.started) != 1 {
		t.Fatalf("expected 1 investigation started, got %d", len(f.runner.started))
	}
	params := f.runner.started[0]
	if params.Queue != "orders-dlq" || params.MessageCount != 12 {
		t.Errorf("unexpected params: %+v", params)
	}
	if params.Timeout != 30*time.Minute {
		t.Errorf("expected 30m timeout, got %s", params.Timeout)
	}

	f.mustState(t, "orders-dlq", session.StateRunning)
	sess := f.store.Get("orders-dlq")
	if sess.Handle == nil || sess.Handle.PID == 0 {
		t.Error("running session should carry a process handle")
	}
	if !sess.StartedAt.Equal(f.now) {
		t.Errorf("expected StartedAt %v, got %v", f.now, sess.StartedAt)
	}

	if got := f.events.kinds(); len(got) != 1 || got[0] != "triggered" {
		t.Errorf("expected one triggered event, got %v", got)
	}
	if len(f.notifier.events) != 1 {
		t.Errorf("expected one notification, got %d", len(f.notifier.events))
	}
}

func TestCoordinator_BelowThresholdDoesNothing(t *testing.T) {
	f := newCoordinatorFixture("orders-dlq")
	f.reader.setCount("orders-dlq", 4)

	f.cycle(t)

	if len(f.runner.started) != 0 {
		t.Errorf("expected no investigations, got %d", len(f.runner.started))
	}
	if f.store.Get("orders-dlq") != nil {
		t.Error("no session should be created for a quiet queue")
	}
}

func TestCoordinator_CooldownBlocksRetrigger(t *testing.T) {
	f := newCoordinatorFixture("orders-dlq")
	f.reader.setCount("orders-dlq", 12)

	f.cycle(t)
	runID := f.store.Get("orders-dlq").Handle.RunID
	f.runner.statuses[runID] = secondary.ProcessStatus{Kind: secondary.StatusExited, ExitCode: 0}

	f.now = f.now.Add(time.Minute)
	f.cycle(t)
	f.mustState(t, "orders-dlq", session.StateCooldown)

	// Still backlogged, still inside the window: no new start.
	f.now = f.now.Add(30 * time.Minute)
	f.cycle(t)
	if len(f.runner.started) != 1 {
		t.Fatalf("cooldown should block a second start, got %d starts", len(f.runner.started))
	}

	// Window elapsed: session is swept to idle and retriggers.
	f.now = f.now.Add(31 * time.Minute)
	f.cycle(t)
	if len(f.runner.started) != 2 {
		t.Fatalf("expected a second start after cooldown, got %d", len(f.runner.started))
	}
}

func TestCoordinator_ConcurrencySlotsLargestFirst(t *testing.T) {
	f := newCoordinatorFixture("a-dlq", "b-dlq", "c-dlq", "d-dlq")
	f.coord.opts.Policy.MaxConcurrent = 2
	f.reader.setCount("a-dlq", 10)
	f.reader.setCount("b-dlq", 80)
	f.reader.setCount("c-dlq", 40)
	f.reader.setCount("d-dlq", 3)

	f.cycle(t)

	if len(f.runner.started) != 2 {
		t.Fatalf("expected 2 starts, got %d", len(f.runner.started))
	}
	if f.runner.started[0].Queue != "b-dlq" || f.runner.started[1].Queue != "c-dlq" {
		t.Errorf("expected largest backlogs first, got %s then %s",
			f.runner.started[0].Queue, f.runner.started[1].Queue)
	}

	// The loser stays a candidate rather than being dropped.
	f.mustState(t, "a-dlq", session.StateTriggered)
	if f.store.Get("d-dlq") != nil {
		t.Error("below-threshold queue should not get a session")
	}

	// A slot opens up; the deferred queue starts next cycle.
	runID := f.store.Get("b-dlq").Handle.RunID
	f.runner.statuses[runID] = secondary.ProcessStatus{Kind: secondary.StatusExited, ExitCode: 0}
	f.now = f.now.Add(time.Minute)
	f.cycle(t)

	found := false
	for _, p := range f.runner.started[2:] {
		if p.Queue == "a-dlq" {
			found = true
		}
	}
	if !found {
		t.Error("deferred queue should start once a slot frees up")
	}
}

func TestCoordinator_SupervisesExitOutcomes(t *testing.T) {
	f := newCoordinatorFixture("ok-dlq", "bad-dlq")
	f.reader.setCount("ok-dlq", 10)
	f.reader.setCount("bad-dlq", 10)

	f.cycle(t)
	okRun := f.store.Get("ok-dlq").Handle.RunID
	badRun := f.store.Get("bad-dlq").Handle.RunID
	f.runner.statuses[okRun] = secondary.ProcessStatus{Kind: secondary.StatusExited, ExitCode: 0}
	f.runner.statuses[badRun] = secondary.ProcessStatus{Kind: secondary.StatusExited, ExitCode: 2}

	f.now = f.now.Add(time.Minute)
	f.cycle(t)

	ok := f.store.Get("ok-dlq")
	if ok.State != session.StateCooldown || ok.LastOutcome != session.OutcomeSuccess {
		t.Errorf("expected cooldown/success, got %s/%s", ok.State, ok.LastOutcome)
	}
	if !ok.CompletedAt.Equal(f.now) {
		t.Errorf("expected CompletedAt %v, got %v", f.now, ok.CompletedAt)
	}

	bad := f.store.Get("bad-dlq")
	if bad.State != session.StateCooldown || bad.LastOutcome != session.OutcomeFailure {
		t.Errorf("expected cooldown/failure, got %s/%s", bad.State, bad.LastOutcome)
	}

	kinds := map[string]bool{}
	for _, k := range f.events.kinds() {
		kinds[k] = true
	}
	if !kinds["completed"] || !kinds["failed"] {
		t.Errorf("expected completed and failed events, got %v", f.events.kinds())
	}
}

func TestCoordinator_TimeoutObservedExactlyOnce(t *testing.T) {
	f := newCoordinatorFixture("slow-dlq")
	f.reader.setCount("slow-dlq", 10)

	f.cycle(t)
	runID := f.store.Get("slow-dlq").Handle.RunID
	f.runner.statuses[runID] = secondary.ProcessStatus{Kind: secondary.StatusTimedOut}

	f.now = f.now.Add(31 * time.Minute)
	f.cycle(t)

	if len(f.runner.terminated) != 1 || f.runner.terminated[0] != runID {
		t.Errorf("expected one termination of %s, got %v", runID, f.runner.terminated)
	}
	sess := f.store.Get("slow-dlq")
	if sess.State != session.StateCooldown || sess.LastOutcome != session.OutcomeTimeout {
		t.Errorf("expected cooldown/timeout, got %s/%s", sess.State, sess.LastOutcome)
	}

	// Further cycles must not re-observe the timeout.
	f.now = f.now.Add(time.Minute)
	f.cycle(t)
	f.now = f.now.Add(time.Minute)
	f.cycle(t)

	timedOut := 0
	for _, k := range f.events.kinds() {
		if k == "timed_out" {
			timedOut++
		}
	}
	if timedOut != 1 {
		t.Errorf("expected exactly one timed_out event, got %d", timedOut)
	}
	if len(f.runner.terminated) != 1 {
		t.Errorf("expected exactly one termination, got %d", len(f.runner.terminated))
	}
}

func TestCoordinator_SpawnFailureRevertsToIdle(t *testing.T) {
	f := newCoordinatorFixture("orders-dlq")
	f.reader.setCount("orders-dlq", 10)
	f.runner.startErr = &secondary.ProcessSpawnError{Queue: "orders-dlq", Err: errors.New("command not found")}

	f.cycle(t)

	f.mustState(t, "orders-dlq", session.StateIdle)
	if got := f.events.kinds(); len(got) != 1 || got[0] != "degraded" {
		t.Errorf("expected one degraded event, got %v", got)
	}

	// The queue retries once the spawn failure clears.
	f.runner.startErr = nil
	f.now = f.now.Add(time.Minute)
	f.cycle(t)
	if len(f.runner.started) != 1 {
		t.Errorf("expected a retry after spawn recovery, got %d starts", len(f.runner.started))
	}
}

func TestCoordinator_ConfigurationErrorExcludesQueue(t *testing.T) {
	f := newCoordinatorFixture("gone-dlq", "orders-dlq")
	f.reader.setCount("orders-dlq", 2)
	f.reader.failures["gone-dlq"] = &secondary.ConfigurationError{Queue: "gone-dlq", Err: errors.New("queue does not exist")}

	f.cycle(t)
	f.cycle(t)

	if len(f.reader.queried) != 2 {
		t.Fatalf("expected 2 fetches, got %d", len(f.reader.queried))
	}
	for _, q := range f.reader.queried[1] {
		if q == "gone-dlq" {
			t.Error("excluded queue should not be polled again")
		}
	}
	if got := f.events.kinds(); len(got) != 1 || got[0] != "degraded" {
		t.Errorf("expected one degraded event, got %v", got)
	}
}

func TestCoordinator_TransientErrorKeepsQueue(t *testing.T) {
	f := newCoordinatorFixture("flaky-dlq")
	f.reader.failures["flaky-dlq"] = &secondary.TransientReadError{Queue: "flaky-dlq", Err: errors.New("throttled")}

	f.cycle(t)

	// The failure clears; the queue triggers normally.
	delete(f.reader.failures, "flaky-dlq")
	f.reader.setCount("flaky-dlq", 10)
	f.cycle(t)

	if len(f.runner.started) != 1 {
		t.Errorf("queue with a transient failure should recover, got %d starts", len(f.runner.started))
	}
}

func TestCoordinator_ForceRequestBypassesThreshold(t *testing.T) {
	f := newCoordinatorFixture("quiet-dlq")
	f.reader.setCount("quiet-dlq", 0)
	f.store.RequestForce("quiet-dlq")

	f.cycle(t)

	if len(f.runner.started) != 1 {
		t.Fatalf("forced queue should start despite empty backlog, got %d starts", len(f.runner.started))
	}
	f.mustState(t, "quiet-dlq", session.StateRunning)

	// The force is consumed; the next completion follows normal rules.
	sess := f.store.Get("quiet-dlq")
	if sess.Forced {
		t.Error("force flag should be consumed on start")
	}
}

func TestCoordinator_StoreFailureIsFatal(t *testing.T) {
	f := newCoordinatorFixture("orders-dlq")
	f.reader.setCount("orders-dlq", 10)
	f.store.upsertErr = errors.New("disk full")

	if err := f.coord.runCycle(context.Background()); err == nil {
		t.Fatal("expected a store failure to abort the cycle")
	}
}

func TestCoordinator_ShutdownRecordsRunningAsFailed(t *testing.T) {
	f := newCoordinatorFixture("orders-dlq")
	f.reader.setCount("orders-dlq", 10)

	f.cycle(t)
	runID := f.store.Get("orders-dlq").Handle.RunID

	f.coord.shutdown()

	if len(f.runner.terminated) != 1 || f.runner.terminated[0] != runID {
		t.Errorf("expected %s terminated, got %v", runID, f.runner.terminated)
	}
	sess := f.store.Get("orders-dlq")
	if sess.State != session.StateFailed || sess.LastOutcome != session.OutcomeUnknown {
		t.Errorf("expected failed/unknown after shutdown, got %s/%s", sess.State, sess.LastOutcome)
	}
}

func TestCoordinator_SweepDrainedTriggeredToIdle(t *testing.T) {
	f := newCoordinatorFixture("a-dlq", "b-dlq")
	f.coord.opts.Policy.MaxConcurrent = 1
	f.reader.setCount("a-dlq", 50)
	f.reader.setCount("b-dlq", 10)

	f.cycle(t)
	f.mustState(t, "a-dlq", session.StateRunning)
	f.mustState(t, "b-dlq", session.StateTriggered)

	// The deferred queue drains below threshold before a slot opens.
	f.reader.setCount("b-dlq", 0)
	f.now = f.now.Add(time.Minute)
	f.cycle(t)

	f.mustState(t, "b-dlq", session.StateIdle)
}
