// ABOUTME: Side effects reported by the reconciler for the caller to act on
// ABOUTME: Session list changes are already applied to State; fetches are left to the caller

package conversation

import "github.com/2389/coven-playground/internal/model"

// EffectKind identifies a side effect.
type EffectKind string

const (
	// EffectSessionRegistered: Session was inserted at the head of the session list.
	EffectSessionRegistered EffectKind = "session_registered"
	// EffectSessionEvicted: SessionID was removed from the session list.
	EffectSessionEvicted EffectKind = "session_evicted"
	// EffectSessionChanged: the active session id became SessionID.
	EffectSessionChanged EffectKind = "session_changed"
	// EffectStreamError: the run failed with Err.
	EffectStreamError EffectKind = "stream_error"
	// EffectFetchSessionState: the caller should fetch the workflow session-state
	// snapshot for WorkflowID and SessionID and store it.
	EffectFetchSessionState EffectKind = "fetch_session_state"
	// EffectClearSessionState: the session-state snapshot was cleared.
	EffectClearSessionState EffectKind = "clear_session_state"
)

// Effect is one side effect of a state transition.
type Effect struct {
	Kind       EffectKind
	Session    model.Session
	SessionID  string
	WorkflowID string
	Err        string
}
