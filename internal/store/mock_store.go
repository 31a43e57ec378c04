// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	prefs  map[string]string
	runs   map[string]*RunRecord
	order  []string                 // run ids in insertion order
	states map[string]*SessionState // keyed by "workflowID/sessionID"

	// Err, when set, is returned by every operation.
	Err error
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		prefs:  make(map[string]string),
		runs:   make(map[string]*RunRecord),
		states: make(map[string]*SessionState),
	}
}

func stateKey(workflowID, sessionID string) string {
	return workflowID + "/" + sessionID
}

// GetPreference returns the value stored under key.
func (m *MockStore) GetPreference(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return "", m.Err
	}
	v, ok := m.prefs[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetPreference stores value under key.
func (m *MockStore) SetPreference(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.prefs[key] = value
	return nil
}

// StartRun records a running run.
func (m *MockStore) StartRun(ctx context.Context, run *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.runs[run.ID]; exists {
		return errors.New("run already exists")
	}
	r := *run
	r.Outcome = RunOutcomeRunning
	m.runs[r.ID] = &r
	m.order = append(m.order, r.ID)
	return nil
}

// FinishRun records the outcome of a run.
func (m *MockStore) FinishRun(ctx context.Context, run *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	r, ok := m.runs[run.ID]
	if !ok {
		return ErrNotFound
	}
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	r.RunID = run.RunID
	r.SessionID = run.SessionID
	r.Outcome = run.Outcome
	r.Error = run.Error
	r.FinishedAt = &finished
	return nil
}

// ListRuns returns runs newest first.
func (m *MockStore) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]*RunRecord, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		r := *m.runs[m.order[i]]
		out = append(out, &r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveSessionState upserts a snapshot.
func (m *MockStore) SaveSessionState(ctx context.Context, state *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	s := *state
	m.states[stateKey(s.WorkflowID, s.SessionID)] = &s
	return nil
}

// GetSessionState returns a stored snapshot.
func (m *MockStore) GetSessionState(ctx context.Context, workflowID, sessionID string) (*SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.states[stateKey(workflowID, sessionID)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

// DeleteSessionState removes a snapshot.
func (m *MockStore) DeleteSessionState(ctx context.Context, workflowID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.states, stateKey(workflowID, sessionID))
	return nil
}

// Close is a no-op.
func (m *MockStore) Close() error { return nil }
