// ABOUTME: Conversation state (messages, sessions, streaming flags) and its thread-safe Store
// ABOUTME: The reconciler mutates State inside Store.Update; renderers read snapshots

package conversation

import (
	"sync"

	"github.com/2389/coven-playground/internal/model"
)

// State is the mutable conversation ledger. It is owned by a Store and only
// mutated inside Store.Update.
type State struct {
	Messages []*model.Message
	// Sessions is nil until a session list has been loaded.
	Sessions []model.Session
	// SessionID is the active session, empty for a new conversation.
	SessionID string
	// HasStorage reports whether the selected target persists sessions server-side.
	HasStorage bool
	// Streaming is true while a run is in progress.
	Streaming bool
	// StreamErr is the last run or transport error, for banner display.
	StreamErr string
	// WorkflowState is the latest workflow session-state snapshot.
	WorkflowState map[string]any
}

// Open returns the message still receiving content: the last message when it
// is an agent message. It returns nil otherwise.
func (s *State) Open() *model.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	last := s.Messages[len(s.Messages)-1]
	if last.Role != model.RoleAgent {
		return nil
	}
	return last
}

// HasSession reports whether id is in the session list.
func (s *State) HasSession(id string) bool {
	for _, sess := range s.Sessions {
		if sess.SessionID == id {
			return true
		}
	}
	return false
}

// removeSession deletes id from the session list and reports whether it was present.
func (s *State) removeSession(id string) bool {
	for i, sess := range s.Sessions {
		if sess.SessionID == id {
			s.Sessions = append(s.Sessions[:i:i], s.Sessions[i+1:]...)
			return true
		}
	}
	return false
}

// Store guards a State for concurrent readers. Writers are serialized.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Update runs fn with exclusive access to the state.
func (s *Store) Update(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// View runs fn with shared access to the state. fn must not mutate it.
func (s *Store) View(fn func(st *State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
}

// Messages returns a copy of the message list.
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, len(s.state.Messages))
	for i, m := range s.state.Messages {
		out[i] = m.Clone()
	}
	return out
}

// Sessions returns a copy of the session list.
func (s *Store) Sessions() []model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Sessions == nil {
		return nil
	}
	return append([]model.Session(nil), s.state.Sessions...)
}

// SessionID returns the active session id.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.SessionID
}

// Streaming reports whether a run is in progress.
func (s *Store) Streaming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Streaming
}

// StreamErr returns the last stream error message.
func (s *Store) StreamErr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.StreamErr
}

// WorkflowState returns the latest workflow session-state snapshot.
func (s *Store) WorkflowState() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.WorkflowState
}

// Clear empties the conversation and resets the active session.
// The session list is kept.
func (s *Store) Clear() {
	s.Update(func(st *State) {
		st.Messages = nil
		st.SessionID = ""
		st.StreamErr = ""
		st.WorkflowState = nil
	})
}
