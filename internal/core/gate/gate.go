// Package gate provides the pure trigger decision for investigations.
// All cooldown and concurrency policy lives here so it has one
// implementation and one test surface.
package gate

import (
	"sort"
	"time"

	"github.com/example/dlqwatch/internal/core/session"
)

// Policy holds the throttling parameters for investigation triggers.
type Policy struct {
	// TriggerThreshold is the minimum backlog that starts an investigation.
	TriggerThreshold int
	// Cooldown is the waiting period after a successful investigation.
	Cooldown time.Duration
	// FailureCooldown is the waiting period after a Failure/Timeout/Unknown
	// outcome. Defaults to Cooldown when zero.
	FailureCooldown time.Duration
	// MaxConcurrent caps sessions in Running state across all queues.
	MaxConcurrent int
}

// Skip reasons.
const (
	ReasonBelowThreshold   = "below threshold"
	ReasonAlreadyRunning   = "already running"
	ReasonCooldownActive   = "cooldown active"
	ReasonConcurrencyLimit = "concurrency limit"
)

// Decision is the outcome of evaluating one queue.
type Decision struct {
	Start  bool
	Reason string // populated on Skip
}

func start() Decision             { return Decision{Start: true} }
func skip(reason string) Decision { return Decision{Reason: reason} }

// CooldownFor picks the window for a completed session by its outcome.
func (p Policy) CooldownFor(outcome session.Outcome) time.Duration {
	if outcome == session.OutcomeSuccess || p.FailureCooldown <= 0 {
		return p.Cooldown
	}
	return p.FailureCooldown
}

// Decide evaluates whether an investigation may start for one queue.
// Pure function: identical inputs yield identical decisions.
//
// Check order: threshold (bypassed for operator-forced sessions), already
// running, cooldown window, global concurrency limit. sess may be nil for a
// queue that has never triggered.
func Decide(sess *session.Session, messageCount, runningCount int, pol Policy, now time.Time) Decision {
	forced := sess != nil && sess.Forced
	if !forced && messageCount < pol.TriggerThreshold {
		return skip(ReasonBelowThreshold)
	}
	if sess != nil {
		switch sess.State {
		case session.StateRunning:
			return skip(ReasonAlreadyRunning)
		case session.StateCooldown:
			if now.Sub(sess.CompletedAt) < pol.CooldownFor(sess.LastOutcome) {
				return skip(ReasonCooldownActive)
			}
		}
	}
	if runningCount >= pol.MaxConcurrent {
		return skip(ReasonConcurrencyLimit)
	}
	return start()
}

// Candidate is a queue eligible to start in the current cycle.
type Candidate struct {
	Queue        string
	MessageCount int
	Forced       bool
}

// AllocateSlots orders candidates by descending backlog (queue name breaks
// ties deterministically) and returns the top free slots to start now; the
// rest are deferred to the next cycle rather than dropped.
func AllocateSlots(candidates []Candidate, freeSlots int) (starting, deferred []Candidate) {
	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].MessageCount != ordered[j].MessageCount {
			return ordered[i].MessageCount > ordered[j].MessageCount
		}
		return ordered[i].Queue < ordered[j].Queue
	})
	if freeSlots < 0 {
		freeSlots = 0
	}
	if freeSlots > len(ordered) {
		freeSlots = len(ordered)
	}
	return ordered[:freeSlots], ordered[freeSlots:]
}
