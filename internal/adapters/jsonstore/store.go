// Package jsonstore implements the session store as a flat JSON document
// with atomic replace semantics. The file is a plain object keyed by queue
// name so operators can inspect and debug state with nothing but cat and
// jq; a lock file keeps a second coordinator from sharing it.
package jsonstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/example/dlqwatch/internal/core/session"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

const (
	sessionsFile = "sessions.json"
	lockFile     = "coordinator.lock"
	forcesDir    = "forces"
	forceSuffix  = ".force"
)

// Store persists sessions to <dir>/sessions.json via write-temp-then-rename.
type Store struct {
	dir      string
	path     string
	lock     *flock.Flock // nil when opened read-only
	mu       sync.Mutex
	sessions map[string]*session.Session
}

// Open opens the store read-only: Get/All/AllRunning and force requests
// work, Upsert does not. Used by CLI query commands while a coordinator
// may be running.
func Open(dir string) (*Store, error) {
	s := &Store{dir: dir, path: filepath.Join(dir, sessionsFile)}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenExclusive opens the store for the coordinator: takes the instance
// lock, loads persisted sessions, and reconciles any Running session whose
// process did not survive a previous coordinator to Failed with an Unknown
// outcome, before the first poll cycle can observe stale state.
func OpenExclusive(dir string) (*Store, error) {
	s, err := Open(dir)
	if err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(dir, lockFile))
	held, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire store lock: %w", err)
	}
	if !held {
		return nil, fmt.Errorf("another coordinator holds the store lock in %s", dir)
	}
	s.lock = lock

	if err := s.reconcile(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return s, nil
}

// Close releases the instance lock, if held.
func (s *Store) Close() error {
	if s.lock != nil {
		return s.lock.Unlock()
	}
	return nil
}

// Get returns the session for a queue, or nil if none exists yet.
func (s *Store) Get(queue string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[queue]
	if !ok {
		return nil
	}
	return sess.Clone()
}

// Upsert persists a session atomically. The whole document is rewritten to
// a temp file and renamed over the old one, so a crash mid-write leaves
// the previous consistent state behind.
func (s *Store) Upsert(sess *session.Session) error {
	if s.lock == nil {
		return fmt.Errorf("session store opened read-only")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Queue] = sess.Clone()
	return s.persistLocked()
}

// All returns every known session, ordered by queue name.
func (s *Store) All() []*session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Queue < out[j].Queue })
	return out
}

// AllRunning returns sessions in Running state.
func (s *Store) AllRunning() []*session.Session {
	var out []*session.Session
	for _, sess := range s.All() {
		if sess.State == session.StateRunning {
			out = append(out, sess)
		}
	}
	return out
}

// RequestForce drops a marker file for the queue. Marker files let a CLI
// process hand a request to the coordinator without touching the locked
// sessions document.
func (s *Store) RequestForce(queue string) error {
	dir := filepath.Join(s.dir, forcesDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create forces dir: %w", err)
	}
	path := filepath.Join(dir, queue+forceSuffix)
	if err := os.WriteFile(path, []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write force request: %w", err)
	}
	return nil
}

// PendingForces drains outstanding force-request markers.
func (s *Store) PendingForces() ([]string, error) {
	dir := filepath.Join(s.dir, forcesDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read forces dir: %w", err)
	}

	var queues []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, forceSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return queues, fmt.Errorf("failed to remove force request: %w", err)
		}
		queues = append(queues, strings.TrimSuffix(name, forceSuffix))
	}
	sort.Strings(queues)
	return queues, nil
}

// sessionRecord is a session as laid out in sessions.json.
type sessionRecord struct {
	Queue        string `json:"queue"`
	State        string `json:"state"`
	RunID        string `json:"run_id,omitempty"`
	PID          int    `json:"pid,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
	LastOutcome  string `json:"last_outcome,omitempty"`
	TriggerCount int    `json:"trigger_message_count"`
	Forced       bool   `json:"forced,omitempty"`
}

func (s *Store) load() error {
	s.sessions = make(map[string]*session.Session)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read sessions: %w", err)
	}

	var records map[string]sessionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse sessions: %w", err)
	}
	for queue, rec := range records {
		sess, err := recordToSession(queue, rec)
		if err != nil {
			return err
		}
		s.sessions[queue] = sess
	}
	return nil
}

// reconcile marks Running sessions with no live process Failed/Unknown.
// The supervising coordinator may have died along with the investigation;
// the session must not claim a Running slot it no longer owns.
func (s *Store) reconcile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	changed := false
	for _, sess := range s.sessions {
		if sess.State != session.StateRunning {
			continue
		}
		if sess.Handle != nil && pidAlive(sess.Handle.PID) {
			continue
		}
		if err := sess.Fail(session.OutcomeUnknown, now); err != nil {
			return fmt.Errorf("failed to reconcile session %s: %w", sess.Queue, err)
		}
		changed = true
	}
	if !changed {
		return nil
	}
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	records := make(map[string]sessionRecord, len(s.sessions))
	for queue, sess := range s.sessions {
		records[queue] = sessionToRecord(sess)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	// Write-temp-then-rename: the rename is atomic on POSIX systems, so a
	// crash at any point leaves either the old or the new document intact.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write sessions: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace sessions: %w", err)
	}
	return nil
}

func sessionToRecord(sess *session.Session) sessionRecord {
	rec := sessionRecord{
		Queue:        sess.Queue,
		State:        string(sess.State),
		LastOutcome:  string(sess.LastOutcome),
		TriggerCount: sess.TriggerCount,
		Forced:       sess.Forced,
	}
	if sess.Handle != nil {
		rec.RunID = sess.Handle.RunID
		rec.PID = sess.Handle.PID
	}
	if !sess.StartedAt.IsZero() {
		rec.StartedAt = sess.StartedAt.UTC().Format(time.RFC3339)
	}
	if !sess.CompletedAt.IsZero() {
		rec.CompletedAt = sess.CompletedAt.UTC().Format(time.RFC3339)
	}
	return rec
}

func recordToSession(queue string, rec sessionRecord) (*session.Session, error) {
	sess := &session.Session{
		Queue:        queue,
		State:        session.State(rec.State),
		LastOutcome:  session.Outcome(rec.LastOutcome),
		TriggerCount: rec.TriggerCount,
		Forced:       rec.Forced,
	}
	if rec.RunID != "" || rec.PID != 0 {
		sess.Handle = &session.Handle{RunID: rec.RunID, PID: rec.PID}
	}
	if rec.StartedAt != "" {
		t, err := time.Parse(time.RFC3339, rec.StartedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse started_at for %s: %w", queue, err)
		}
		sess.StartedAt = t
	}
	if rec.CompletedAt != "" {
		t, err := time.Parse(time.RFC3339, rec.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at for %s: %w", queue, err)
		}
		sess.CompletedAt = t
	}
	return sess, nil
}

// Ensure Store implements the interface.
var _ secondary.SessionStore = (*Store)(nil)
