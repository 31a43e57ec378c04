// ABOUTME: Run targets (agent, team, workflow) and the fixed priority used to pick one
// ABOUTME: Also holds the catalog entries returned by the playground listing endpoints

package model

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNoTarget is returned when no agent, team, or workflow is selected.
var ErrNoTarget = errors.New("no agent, team, or workflow selected")

// TargetKind is the kind of entity a run is addressed to.
type TargetKind string

const (
	TargetAgent    TargetKind = "agent"
	TargetTeam     TargetKind = "team"
	TargetWorkflow TargetKind = "workflow"
)

// Target identifies the entity a run is addressed to.
type Target struct {
	Kind TargetKind
	ID   string
}

// IsZero reports whether no target is set.
func (t Target) IsZero() bool { return t.ID == "" }

// IsWorkflow reports whether t addresses a workflow.
func (t Target) IsWorkflow() bool { return t.Kind == TargetWorkflow && t.ID != "" }

// String returns "kind:id", used as the conversation key for broadcasts.
func (t Target) String() string {
	if t.IsZero() {
		return ""
	}
	return string(t.Kind) + ":" + t.ID
}

// ParseTarget parses "kind:id" as produced by String.
func ParseTarget(s string) (Target, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return Target{}, fmt.Errorf("invalid target %q: want kind:id", s)
	}
	switch TargetKind(kind) {
	case TargetAgent, TargetTeam, TargetWorkflow:
		return Target{Kind: TargetKind(kind), ID: id}, nil
	default:
		return Target{}, fmt.Errorf("invalid target kind %q", kind)
	}
}

// ResolveTarget picks one target from the selected ids.
// Priority is team, then agent, then workflow.
func ResolveTarget(agentID, teamID, workflowID string, logger *slog.Logger) (Target, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if agentID != "" && teamID != "" {
		logger.Warn("both agent and team selected, using team", "agent_id", agentID, "team_id", teamID)
		agentID = ""
	}
	if (agentID != "" || teamID != "") && workflowID != "" {
		logger.Warn("workflow selected together with agent/team, ignoring workflow", "workflow_id", workflowID)
	}

	switch {
	case teamID != "":
		return Target{Kind: TargetTeam, ID: teamID}, nil
	case agentID != "":
		return Target{Kind: TargetAgent, ID: agentID}, nil
	case workflowID != "":
		return Target{Kind: TargetWorkflow, ID: workflowID}, nil
	default:
		return Target{}, ErrNoTarget
	}
}

// StorageFlag decodes the "storage" field, which backends send either as a
// boolean or as a storage config object.
type StorageFlag bool

// UnmarshalJSON treats null and false as disabled and anything else as enabled.
func (f *StorageFlag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "", "null", "false", `""`:
		*f = false
	default:
		*f = true
	}
	return nil
}

// ModelInfo describes the model backing an agent or team.
type ModelInfo struct {
	Name     string `json:"name"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// Agent is a playground agent.
type Agent struct {
	AgentID     string      `json:"agent_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Model       ModelInfo   `json:"model"`
	Storage     StorageFlag `json:"storage"`
}

// Team is a playground team.
type Team struct {
	TeamID      string      `json:"team_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Model       ModelInfo   `json:"model"`
	Storage     StorageFlag `json:"storage"`
}

// Workflow is a playground workflow.
type Workflow struct {
	WorkflowID  string         `json:"workflow_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Storage     StorageFlag    `json:"storage"`
}
