// ABOUTME: Converts a fetched session's run history into conversation messages
// ABOUTME: Handles agent/team message-response pairs and workflow event entries

package client

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/2389/coven-playground/internal/model"
)

// SessionDetail is a fetched session.
type SessionDetail struct {
	SessionID  string         `json:"session_id"`
	AgentID    string         `json:"agent_id,omitempty"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	UserID     *string        `json:"user_id"`
	Runs       []SessionRun   `json:"runs,omitempty"`
	Memory     *SessionMemory `json:"memory,omitempty"`
}

// SessionMemory is the legacy location of the run history.
type SessionMemory struct {
	Runs []SessionRun `json:"runs,omitempty"`
}

// History returns the session's runs, preferring the top-level list.
func (d *SessionDetail) History() []SessionRun {
	if d.Runs != nil {
		return d.Runs
	}
	if d.Memory != nil {
		return d.Memory.Runs
	}
	return nil
}

// SessionRun is one history entry. Agent and team sessions use Message and
// Response; workflow sessions use flat Event records.
type SessionRun struct {
	Event     string          `json:"event,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	CreatedAt *int64          `json:"created_at,omitempty"`
	RunID     string          `json:"run_id,omitempty"`

	Message  *RunMessage  `json:"message,omitempty"`
	Response *RunResponse `json:"response,omitempty"`
}

// RunMessage is the user side of a stored run.
type RunMessage struct {
	Content   json.RawMessage `json:"content"`
	CreatedAt int64           `json:"created_at"`
}

// RunResponse is the agent side of a stored run.
type RunResponse struct {
	Content       json.RawMessage      `json:"content"`
	Tools         []model.ToolCall     `json:"tools,omitempty"`
	ExtraData     *model.ExtraData     `json:"extra_data,omitempty"`
	Images        []model.Image        `json:"images,omitempty"`
	Videos        []model.Video        `json:"videos,omitempty"`
	Audio         []model.Audio        `json:"audio,omitempty"`
	ResponseAudio *model.ResponseAudio `json:"response_audio,omitempty"`
	CreatedAt     int64                `json:"created_at"`
	RunID         string               `json:"run_id,omitempty"`
}

const (
	workflowEventResponse = "RunResponse"
	workflowEventUser     = "UserMessage"
	reasoningRoleTool     = "tool"
)

// Messages converts the session history into conversation messages.
// workflow selects the workflow entry format.
func Messages(d *SessionDetail, workflow bool, now func() time.Time) []*model.Message {
	if now == nil {
		now = time.Now
	}
	var out []*model.Message
	for _, run := range d.History() {
		switch {
		case workflow && run.Event == workflowEventResponse:
			out = append(out, workflowMessage(run, model.RoleAgent, d.SessionID, now))
		case workflow && run.Event == workflowEventUser:
			out = append(out, workflowMessage(run, model.RoleUser, d.SessionID, now))
		default:
			out = append(out, runMessages(run, d.SessionID)...)
		}
	}
	return out
}

func workflowMessage(run SessionRun, role model.Role, sessionID string, now func() time.Time) *model.Message {
	created := now().Unix()
	if run.CreatedAt != nil {
		created = *run.CreatedAt
	}
	runID := run.RunID
	if runID == "" {
		runID = strconv.FormatInt(created, 10)
	}
	return &model.Message{
		Role:      role,
		Content:   renderContent(run.Content),
		CreatedAt: created,
		RunID:     runID,
		SessionID: sessionID,
	}
}

func runMessages(run SessionRun, sessionID string) []*model.Message {
	var out []*model.Message
	if run.Message != nil {
		runID := strconv.FormatInt(run.Message.CreatedAt, 10)
		if run.Response != nil && run.Response.RunID != "" {
			runID = run.Response.RunID
		}
		out = append(out, &model.Message{
			Role:      model.RoleUser,
			Content:   renderContent(run.Message.Content),
			CreatedAt: run.Message.CreatedAt,
			RunID:     runID,
			SessionID: sessionID,
		})
	}

	if resp := run.Response; resp != nil {
		runID := resp.RunID
		if runID == "" {
			runID = strconv.FormatInt(resp.CreatedAt, 10)
		}
		out = append(out, &model.Message{
			Role:          model.RoleAgent,
			Content:       renderContent(resp.Content),
			ToolCalls:     historyToolCalls(resp),
			Extra:         resp.ExtraData,
			Images:        resp.Images,
			Videos:        resp.Videos,
			Audio:         resp.Audio,
			ResponseAudio: resp.ResponseAudio,
			CreatedAt:     resp.CreatedAt,
			RunID:         runID,
			SessionID:     sessionID,
		})
	}
	return out
}

// historyToolCalls returns the response tools followed by tool-role
// reasoning messages converted to tool calls.
func historyToolCalls(resp *RunResponse) []model.ToolCall {
	calls := append([]model.ToolCall(nil), resp.Tools...)
	if resp.ExtraData != nil {
		for _, rm := range resp.ExtraData.ReasoningMessages {
			if rm.Role != reasoningRoleTool {
				continue
			}
			call := model.ToolCall{
				Role:          rm.Role,
				ToolCallID:    rm.ToolCallID,
				ToolName:      rm.ToolName,
				ToolArgs:      rm.ToolArgs,
				ToolCallError: rm.ToolCallError,
				CreatedAt:     rm.CreatedAt,
			}
			if rm.Content != nil {
				call.Content = *rm.Content
			}
			if call.ToolArgs == nil {
				call.ToolArgs = map[string]any{}
			}
			if rm.Metrics != nil {
				call.Metrics = *rm.Metrics
			}
			calls = append(calls, call)
		}
	}
	if len(calls) == 0 {
		return nil
	}
	return calls
}

// renderContent turns stored content into display text: strings as-is, text
// part arrays joined with spaces, anything else as a JSON block.
func renderContent(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if raw[0] == '[' && json.Unmarshal(raw, &parts) == nil {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			if p.Type == "text" {
				texts = append(texts, p.Text)
			}
		}
		return strings.Join(texts, " ")
	}

	return model.JSONMarkdown(raw)
}
