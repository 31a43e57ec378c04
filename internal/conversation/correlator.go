// ABOUTME: Session correlator: registers a run's session exactly once and synthesizes
// ABOUTME: client-side session ids for workflows that have none yet

package conversation

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/2389/coven-playground/internal/model"
)

// ErrCorrelationConflict reports a synthesized session id that collided with an
// existing session. It is retried internally and only logged.
var ErrCorrelationConflict = errors.New("synthesized session id already exists")

// maxSynthesizeAttempts bounds regeneration on collision.
const maxSynthesizeAttempts = 8

// Correlator maintains the session list on behalf of runs.
type Correlator struct {
	newID  func() string
	logger *slog.Logger
}

// NewCorrelator creates a Correlator. A nil newID uses random UUIDs.
func NewCorrelator(newID func() string, logger *slog.Logger) *Correlator {
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		newID:  newID,
		logger: logger.With("component", "correlator"),
	}
}

// RegisterIfAbsent inserts sess at the head of the session list unless an
// entry with the same id exists. Nothing is registered when the target has no
// server-side storage. It reports whether the list changed.
func (c *Correlator) RegisterIfAbsent(st *State, sess model.Session) bool {
	if !st.HasStorage || sess.SessionID == "" {
		return false
	}
	if st.HasSession(sess.SessionID) {
		c.logger.Debug("session already registered", "session_id", sess.SessionID)
		return false
	}
	st.Sessions = append([]model.Session{sess}, st.Sessions...)
	c.logger.Debug("session registered", "session_id", sess.SessionID)
	return true
}

// Evict removes id from the session list and reports whether it was present.
func (c *Correlator) Evict(st *State, id string) bool {
	if id == "" {
		return false
	}
	removed := st.removeSession(id)
	if removed {
		c.logger.Debug("session evicted", "session_id", id)
	}
	return removed
}

// Synthesize returns a new session id not present in the session list.
func (c *Correlator) Synthesize(st *State) string {
	id := c.newID()
	for attempt := 1; st.HasSession(id) && attempt < maxSynthesizeAttempts; attempt++ {
		c.logger.Debug("regenerating session id", "error", ErrCorrelationConflict, "session_id", id, "attempt", attempt)
		id = c.newID()
	}
	if st.HasSession(id) {
		// Random UUIDs make this unreachable in practice; fall back to a fresh UUID.
		c.logger.Warn("session id generator keeps colliding, using random uuid", "error", ErrCorrelationConflict)
		id = uuid.New().String()
	}
	return id
}
