package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/dlqwatch/internal/core/session"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

// mockSessionStore implements secondary.SessionStore for testing.
type mockSessionStore struct {
	sessions  map[string]*session.Session
	forces    []string
	upsertErr error
	upserts   int
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]*session.Session)}
}

func (m *mockSessionStore) Get(queue string) *session.Session {
	if s, ok := m.sessions[queue]; ok {
		return s.Clone()
	}
	return nil
}

func (m *mockSessionStore) Upsert(sess *session.Session) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts++
	m.sessions[sess.Queue] = sess.Clone()
	return nil
}

func (m *mockSessionStore) All() []*session.Session {
	out := make([]*session.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Queue < out[j].Queue })
	return out
}

func (m *mockSessionStore) AllRunning() []*session.Session {
	var out []*session.Session
	for _, s := range m.All() {
		if s.State == session.StateRunning {
			out = append(out, s)
		}
	}
	return out
}

func (m *mockSessionStore) RequestForce(queue string) error {
	m.forces = append(m.forces, queue)
	return nil
}

func (m *mockSessionStore) PendingForces() ([]string, error) {
	forces := m.forces
	m.forces = nil
	return forces, nil
}

// mockQueueReader implements secondary.QueueReader for testing.
type mockQueueReader struct {
	snapshots map[string]secondary.QueueSnapshot
	failures  map[string]error
	refs      []secondary.QueueRef
	queried   [][]string
}

func newMockQueueReader() *mockQueueReader {
	return &mockQueueReader{
		snapshots: make(map[string]secondary.QueueSnapshot),
		failures:  make(map[string]error),
	}
}

func (m *mockQueueReader) setCount(queue string, count int) {
	m.snapshots[queue] = secondary.QueueSnapshot{QueueName: queue, MessageCount: count}
}

func (m *mockQueueReader) FetchSnapshots(ctx context.Context, queues []string) (map[string]secondary.QueueSnapshot, map[string]error) {
	m.queried = append(m.queried, append([]string(nil), queues...))
	snapshots := make(map[string]secondary.QueueSnapshot)
	failures := make(map[string]error)
	for _, q := range queues {
		if err, ok := m.failures[q]; ok {
			failures[q] = err
			continue
		}
		if snap, ok := m.snapshots[q]; ok {
			snapshots[q] = snap
		}
	}
	return snapshots, failures
}

func (m *mockQueueReader) DiscoverQueues(ctx context.Context) ([]secondary.QueueRef, error) {
	return m.refs, nil
}

// mockRunner implements secondary.InvestigationRunner for testing.
type mockRunner struct {
	started    []secondary.InvestigationParams
	startErr   error
	statuses   map[string]secondary.ProcessStatus // keyed by run ID
	terminated []string
	nextPID    int
}

func newMockRunner() *mockRunner {
	return &mockRunner{statuses: make(map[string]secondary.ProcessStatus), nextPID: 1000}
}

func (m *mockRunner) Start(ctx context.Context, params secondary.InvestigationParams) (*session.Handle, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started = append(m.started, params)
	m.nextPID++
	runID := fmt.Sprintf("run-%d", m.nextPID)
	m.statuses[runID] = secondary.ProcessStatus{Kind: secondary.StatusRunning}
	return &session.Handle{RunID: runID, PID: m.nextPID}, nil
}

func (m *mockRunner) Poll(h *session.Handle) secondary.ProcessStatus {
	if status, ok := m.statuses[h.RunID]; ok {
		return status
	}
	return secondary.ProcessStatus{Kind: secondary.StatusExited, ExitCode: -1}
}

func (m *mockRunner) Terminate(h *session.Handle) error {
	m.terminated = append(m.terminated, h.RunID)
	return nil
}

// mockEventRepo implements secondary.EventRepository for testing.
type mockEventRepo struct {
	records []*secondary.EventRecord
	nextID  int64
}

func (m *mockEventRepo) Append(ctx context.Context, rec *secondary.EventRecord) error {
	m.nextID++
	rec.ID = m.nextID
	m.records = append(m.records, rec)
	return nil
}

func (m *mockEventRepo) List(ctx context.Context, filters secondary.EventFilters) ([]*secondary.EventRecord, error) {
	var out []*secondary.EventRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if filters.Queue != "" && rec.Queue != filters.Queue {
			continue
		}
		out = append(out, rec)
		if filters.Limit > 0 && len(out) == filters.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockEventRepo) kinds() []string {
	out := make([]string, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Kind)
	}
	return out
}

// mockNotifier implements secondary.Notifier for testing.
type mockNotifier struct {
	events []secondary.Event
}

func (m *mockNotifier) Notify(e secondary.Event) {
	m.events = append(m.events, e)
}
