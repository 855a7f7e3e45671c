// Package session defines the investigation session state machine.
// A session tracks one queue's investigation lifecycle over time and is
// the unit of durable state; the coordinator is its sole writer.
package session

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a session.
type State string

// Session states.
const (
	StateIdle      State = "idle"
	StateTriggered State = "triggered"
	StateRunning   State = "running"
	StateCooldown  State = "cooldown"
	StateFailed    State = "failed"
)

// Outcome is the result of the most recent investigation run.
type Outcome string

// Investigation outcomes.
const (
	OutcomeNone    Outcome = ""
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
	OutcomeUnknown Outcome = "unknown"
)

// Handle is an opaque reference to a supervised investigation process.
// Present only while the session is Running.
type Handle struct {
	RunID string
	PID   int
}

// Session is the durable record for one queue's investigation lifecycle.
type Session struct {
	Queue        string
	State        State
	Handle       *Handle
	StartedAt    time.Time
	CompletedAt  time.Time
	LastOutcome  Outcome
	TriggerCount int
	Forced       bool
}

// New creates an idle session for a queue. Sessions are created lazily
// on first trigger and never deleted.
func New(queue string) *Session {
	return &Session{Queue: queue, State: StateIdle}
}

// ErrInvalidTransition is returned when a lifecycle transition is not legal
// from the session's current state.
type ErrInvalidTransition struct {
	Queue string
	From  State
	To    State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("session %s: invalid transition %s -> %s", e.Queue, e.From, e.To)
}

// Trigger marks the session as a start candidate for the current cycle.
// Legal from Idle, Cooldown (window already verified by the gate), Failed,
// or Triggered (re-trigger of a deferred candidate refreshes the backlog
// count). The previous run's timestamps are cleared so the next
// Running/Cooldown pair records exactly one start and one completion.
func (s *Session) Trigger(messageCount int, forced bool) error {
	switch s.State {
	case StateIdle, StateCooldown, StateFailed, StateTriggered:
	default:
		return &ErrInvalidTransition{Queue: s.Queue, From: s.State, To: StateTriggered}
	}
	s.State = StateTriggered
	s.TriggerCount = messageCount
	s.Forced = s.Forced || forced
	s.StartedAt = time.Time{}
	s.CompletedAt = time.Time{}
	return nil
}

// MarkRunning records the dispatch of a supervised process. Only legal from
// Triggered; StartedAt is set here and nowhere else.
func (s *Session) MarkRunning(h Handle, now time.Time) error {
	if s.State != StateTriggered {
		return &ErrInvalidTransition{Queue: s.Queue, From: s.State, To: StateRunning}
	}
	s.State = StateRunning
	s.Handle = &h
	s.StartedAt = now
	s.Forced = false
	return nil
}

// Complete records a terminal process status and moves the session to
// Cooldown. Only legal from Running; CompletedAt is set here and in Fail,
// and nowhere else.
func (s *Session) Complete(outcome Outcome, now time.Time) error {
	if s.State != StateRunning {
		return &ErrInvalidTransition{Queue: s.Queue, From: s.State, To: StateCooldown}
	}
	s.State = StateCooldown
	s.Handle = nil
	s.CompletedAt = now
	s.LastOutcome = outcome
	return nil
}

// Fail moves a Running session directly to Failed. Used by crash-recovery
// reconciliation and coordinator shutdown, where no process status is
// available.
func (s *Session) Fail(outcome Outcome, now time.Time) error {
	if s.State != StateRunning {
		return &ErrInvalidTransition{Queue: s.Queue, From: s.State, To: StateFailed}
	}
	s.State = StateFailed
	s.Handle = nil
	s.CompletedAt = now
	s.LastOutcome = outcome
	return nil
}

// ToIdle returns the session to Idle. Legal from Cooldown (window elapsed)
// and from Triggered (deferred candidate whose queue drained below
// threshold, or a dispatch that could not spawn).
func (s *Session) ToIdle() error {
	switch s.State {
	case StateCooldown, StateTriggered:
	default:
		return &ErrInvalidTransition{Queue: s.Queue, From: s.State, To: StateIdle}
	}
	s.State = StateIdle
	s.Forced = false
	return nil
}

// Clone returns a copy of the session safe to hand outside the store.
func (s *Session) Clone() *Session {
	c := *s
	if s.Handle != nil {
		h := *s.Handle
		c.Handle = &h
	}
	return &c
}
