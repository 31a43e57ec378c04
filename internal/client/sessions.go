// ABOUTME: Session endpoints: list, fetch, delete, rename, state snapshot, and branch
// ABOUTME: A 404 on session listings means storage is disabled and yields an empty list

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/coven-playground/internal/model"
)

// Sessions lists the stored sessions of t, newest first as returned by the
// backend. A 404 means the target has no storage and yields an empty list.
func (c *Client) Sessions(ctx context.Context, t model.Target) ([]model.Session, error) {
	var sessions []model.Session
	err := c.getJSON(ctx, routeSessions, targetParams(t), &sessions)
	if errors.Is(err, ErrNotFound) {
		c.logger.Debug("session listing not found, storage disabled", "target", t.String())
		return []model.Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sessions for %s: %w", t, err)
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}

// Session fetches one session with its run history.
func (c *Client) Session(ctx context.Context, t model.Target, sessionID string) (*SessionDetail, error) {
	var detail SessionDetail
	if err := c.getJSON(ctx, routeSession, sessionParams(t, sessionID), &detail); err != nil {
		return nil, fmt.Errorf("failed to fetch session %s: %w", sessionID, err)
	}
	return &detail, nil
}

// DeleteSession deletes a stored session.
func (c *Client) DeleteSession(ctx context.Context, t model.Target, sessionID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(sessionParams(t, sessionID)).
		Delete(routeSession)
	if err := check(resp, err); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// RenameWorkflowSession renames a workflow session.
func (c *Client) RenameWorkflowSession(ctx context.Context, workflowID, sessionID, name string) error {
	t := model.Target{Kind: model.TargetWorkflow, ID: workflowID}
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(sessionParams(t, sessionID)).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"name": name}).
		Post(routeRenameSession)
	if err := check(resp, err); err != nil {
		return fmt.Errorf("failed to rename session %s: %w", sessionID, err)
	}
	return nil
}

// WorkflowSessionState fetches the session-state snapshot of a workflow session.
func (c *Client) WorkflowSessionState(ctx context.Context, workflowID, sessionID string) (map[string]any, error) {
	t := model.Target{Kind: model.TargetWorkflow, ID: workflowID}
	state := map[string]any{}
	if err := c.getJSON(ctx, routeSessionState, sessionParams(t, sessionID), &state); err != nil {
		return nil, fmt.Errorf("failed to fetch workflow session state: %w", err)
	}
	return state, nil
}

// BranchSession clones sourceSessionID up to runID into a new session and
// returns the new session id.
func (c *Client) BranchSession(ctx context.Context, sourceSessionID, runID string) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"source_session_id": sourceSessionID,
			"run_id":            runID,
		}).
		Post(routeBranchSession)
	if err := check(resp, err); err != nil {
		return "", fmt.Errorf("failed to branch session: %w", err)
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("failed to parse branch response: %w", err)
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("failed to branch session: response has no session_id")
	}
	return out.SessionID, nil
}
