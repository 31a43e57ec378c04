// ABOUTME: Status probe and agent/team/workflow catalog listings
// ABOUTME: Used to initialize target selection

package client

import (
	"context"
	"fmt"

	"github.com/2389/coven-playground/internal/model"
)

// Status probes the backend and returns the HTTP status code. A transport
// failure returns an error and a zero status.
func (c *Client) Status(ctx context.Context) (int, error) {
	resp, err := c.http.R().SetContext(ctx).Get(routeStatus)
	if err != nil {
		return 0, fmt.Errorf("status check failed: %w", err)
	}
	return resp.StatusCode(), nil
}

// Agents lists the playground agents.
func (c *Client) Agents(ctx context.Context) ([]model.Agent, error) {
	var agents []model.Agent
	if err := c.getJSON(ctx, routeCatalog, map[string]string{"collection": collectionAgents}, &agents); err != nil {
		return nil, fmt.Errorf("failed to fetch playground agents: %w", err)
	}
	return agents, nil
}

// Teams lists the playground teams.
func (c *Client) Teams(ctx context.Context) ([]model.Team, error) {
	var teams []model.Team
	if err := c.getJSON(ctx, routeCatalog, map[string]string{"collection": collectionTeams}, &teams); err != nil {
		return nil, fmt.Errorf("failed to fetch playground teams: %w", err)
	}
	return teams, nil
}

// Workflows lists the playground workflows.
func (c *Client) Workflows(ctx context.Context) ([]model.Workflow, error) {
	var workflows []model.Workflow
	if err := c.getJSON(ctx, routeCatalog, map[string]string{"collection": collectionWorkflows}, &workflows); err != nil {
		return nil, fmt.Errorf("failed to fetch workflows: %w", err)
	}
	return workflows, nil
}

// Workflow fetches one workflow with its parameters.
func (c *Client) Workflow(ctx context.Context, workflowID string) (*model.Workflow, error) {
	var wf model.Workflow
	params := targetParams(model.Target{Kind: model.TargetWorkflow, ID: workflowID})
	if err := c.getJSON(ctx, routeEntity, params, &wf); err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}
	return &wf, nil
}

// HasStorage reports whether t persists sessions server-side, according to
// the catalog entry for t.
func (c *Client) HasStorage(ctx context.Context, t model.Target) (bool, error) {
	switch t.Kind {
	case model.TargetTeam:
		teams, err := c.Teams(ctx)
		if err != nil {
			return false, err
		}
		for _, team := range teams {
			if team.TeamID == t.ID {
				return bool(team.Storage), nil
			}
		}
	case model.TargetWorkflow:
		wfs, err := c.Workflows(ctx)
		if err != nil {
			return false, err
		}
		for _, wf := range wfs {
			if wf.WorkflowID == t.ID {
				return bool(wf.Storage), nil
			}
		}
	default:
		agents, err := c.Agents(ctx)
		if err != nil {
			return false, err
		}
		for _, a := range agents {
			if a.AgentID == t.ID {
				return bool(a.Storage), nil
			}
		}
	}
	return false, fmt.Errorf("%s %s: %w", t.Kind, t.ID, ErrNotFound)
}
