// ABOUTME: Store interface and data types for local playground persistence
// ABOUTME: Holds preferences, the run log, and workflow session-state snapshots

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Preference keys.
const (
	// PrefEndpoint is the selected backend base URL.
	PrefEndpoint = "selected_endpoint"
	// PrefTarget is the last selected target as "kind:id".
	PrefTarget = "last_target"
)

// RunOutcome is the final state of a logged run.
type RunOutcome string

const (
	RunOutcomeRunning   RunOutcome = "running"
	RunOutcomeCompleted RunOutcome = "completed"
	RunOutcomeFailed    RunOutcome = "failed"
	RunOutcomeAborted   RunOutcome = "aborted"
)

// RunRecord is one entry of the local run log.
type RunRecord struct {
	ID         string // local id, assigned at submit
	RunID      string // server run id, once reported
	Target     string // "kind:id"
	SessionID  string
	Input      string
	Outcome    RunOutcome
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// SessionState is the latest session-state snapshot of a workflow session.
type SessionState struct {
	WorkflowID string
	SessionID  string
	State      map[string]any
	UpdatedAt  time.Time
}

// Store defines the local persistence operations.
type Store interface {
	// Preferences
	GetPreference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error

	// Run log
	StartRun(ctx context.Context, run *RunRecord) error
	FinishRun(ctx context.Context, run *RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)

	// Workflow session state
	SaveSessionState(ctx context.Context, state *SessionState) error
	GetSessionState(ctx context.Context, workflowID, sessionID string) (*SessionState, error)
	DeleteSessionState(ctx context.Context, workflowID, sessionID string) error

	Close() error
}
