// ABOUTME: Latest workflow session-state snapshot per (workflow, session)
// ABOUTME: Snapshots are stored as JSON and replaced on every refresh

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SaveSessionState upserts the snapshot for state's workflow and session.
func (s *SQLiteStore) SaveSessionState(ctx context.Context, state *SessionState) error {
	raw, err := json.Marshal(state.State)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}
	updated := state.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	query := `
		INSERT INTO session_states (workflow_id, session_id, state_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(workflow_id, session_id) DO UPDATE SET
			state_json = excluded.state_json,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		state.WorkflowID,
		state.SessionID,
		string(raw),
		updated.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("saving session state: %w", err)
	}
	return nil
}

// GetSessionState returns the stored snapshot, or ErrNotFound.
func (s *SQLiteStore) GetSessionState(ctx context.Context, workflowID, sessionID string) (*SessionState, error) {
	var raw, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json, updated_at FROM session_states WHERE workflow_id = ? AND session_id = ?`,
		workflowID, sessionID,
	).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session state: %w", err)
	}

	out := &SessionState{WorkflowID: workflowID, SessionID: sessionID}
	if err := json.Unmarshal([]byte(raw), &out.State); err != nil {
		return nil, fmt.Errorf("decoding session state: %w", err)
	}
	out.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return out, nil
}

// DeleteSessionState removes a stored snapshot. Missing snapshots are not an error.
func (s *SQLiteStore) DeleteSessionState(ctx context.Context, workflowID, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_states WHERE workflow_id = ? AND session_id = ?`,
		workflowID, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session state: %w", err)
	}
	return nil
}
