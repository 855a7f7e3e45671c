package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/dlqwatch/internal/core/session"
	"github.com/example/dlqwatch/internal/ports/primary"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

// MonitorServiceImpl implements the MonitorService interface.
type MonitorServiceImpl struct {
	store  secondary.SessionStore
	reader secondary.QueueReader
	events secondary.EventRepository
	queues []string
}

// NewMonitorService creates a new MonitorService with injected dependencies.
func NewMonitorService(
	store secondary.SessionStore,
	reader secondary.QueueReader,
	events secondary.EventRepository,
	queues []string,
) *MonitorServiceImpl {
	return &MonitorServiceImpl{
		store:  store,
		reader: reader,
		events: events,
		queues: queues,
	}
}

// ListSessions returns every known session, ordered by queue name.
func (s *MonitorServiceImpl) ListSessions(ctx context.Context) ([]*primary.SessionView, error) {
	sessions := s.store.All()
	views := make([]*primary.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sessionToView(sess))
	}
	return views, nil
}

// ListQueueSnapshots fetches live backlog counts for the configured
// queues. Per-queue failures are reported inline so one broken queue does
// not hide the rest.
func (s *MonitorServiceImpl) ListQueueSnapshots(ctx context.Context) ([]*primary.QueueView, error) {
	snapshots, failures := s.reader.FetchSnapshots(ctx, s.queues)

	views := make([]*primary.QueueView, 0, len(s.queues))
	for _, queue := range s.queues {
		view := &primary.QueueView{Queue: queue}
		if snap, ok := snapshots[queue]; ok {
			view.URL = snap.QueueURL
			view.MessageCount = snap.MessageCount
		} else if err, ok := failures[queue]; ok {
			view.Err = err.Error()
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Queue < views[j].Queue })
	return views, nil
}

// ListEvents returns recent audit-log events, newest first.
func (s *MonitorServiceImpl) ListEvents(ctx context.Context, limit int) ([]*primary.EventView, error) {
	records, err := s.events.List(ctx, secondary.EventFilters{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	views := make([]*primary.EventView, 0, len(records))
	for _, rec := range records {
		views = append(views, &primary.EventView{
			Queue:        rec.Queue,
			Kind:         rec.Kind,
			Detail:       rec.Detail,
			MessageCount: rec.MessageCount,
			CreatedAt:    rec.CreatedAt,
		})
	}
	return views, nil
}

// ForceInvestigate requests an investigation for a queue regardless of
// backlog. The request is handed to the coordinator; cooldown and
// concurrency limits still apply when it evaluates the queue.
func (s *MonitorServiceImpl) ForceInvestigate(ctx context.Context, queue string) error {
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	known := false
	for _, q := range s.queues {
		if q == queue {
			known = true
			break
		}
	}
	if !known && s.store.Get(queue) == nil {
		return fmt.Errorf("queue not monitored: %s", queue)
	}
	if err := s.store.RequestForce(queue); err != nil {
		return fmt.Errorf("failed to request investigation: %w", err)
	}
	return nil
}

// Helper methods

func sessionToView(sess *session.Session) *primary.SessionView {
	view := &primary.SessionView{
		Queue:        sess.Queue,
		State:        string(sess.State),
		StartedAt:    sess.StartedAt,
		CompletedAt:  sess.CompletedAt,
		LastOutcome:  string(sess.LastOutcome),
		TriggerCount: sess.TriggerCount,
		Forced:       sess.Forced,
	}
	if sess.Handle != nil {
		view.PID = sess.Handle.PID
	}
	return view
}

// Ensure MonitorServiceImpl implements the interface
var _ primary.MonitorService = (*MonitorServiceImpl)(nil)
