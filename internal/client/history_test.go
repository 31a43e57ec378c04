// ABOUTME: Tests for converting stored session history into messages
// ABOUTME: Covers agent run pairs, reasoning tool calls, workflow entries, and content rendering

package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-playground/internal/model"
)

func decodeDetail(t *testing.T, raw string) *SessionDetail {
	t.Helper()
	var d SessionDetail
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	return &d
}

func TestMessages_AgentRuns(t *testing.T) {
	d := decodeDetail(t, `{
		"session_id": "S1",
		"user_id": null,
		"memory": {"runs": [
			{
				"message": {"content": "What is Go?", "created_at": 100},
				"response": {
					"content": "A language.",
					"run_id": "R1",
					"created_at": 101,
					"tools": [{"tool_call_id": "t1", "tool_name": "search", "metrics": {"time": 1}, "created_at": 100}],
					"extra_data": {"reasoning_messages": [
						{"role": "assistant", "content": "thinking"},
						{"role": "tool", "content": "result", "tool_call_id": "t2", "tool_name": "fetch"}
					]}
				}
			},
			{
				"message": {"content": [{"type": "text", "text": "Show"}, {"type": "image", "text": "x"}, {"type": "text", "text": "json"}], "created_at": 200},
				"response": {"content": {"answer": 1}, "created_at": 201}
			}
		]}
	}`)

	msgs := Messages(d, false, nil)
	require.Len(t, msgs, 4)

	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "What is Go?", msgs[0].Content)
	assert.Equal(t, "R1", msgs[0].RunID)
	assert.Equal(t, "S1", msgs[0].SessionID)

	agent := msgs[1]
	assert.Equal(t, model.RoleAgent, agent.Role)
	assert.Equal(t, "A language.", agent.Content)
	require.Len(t, agent.ToolCalls, 2)
	assert.Equal(t, "search", agent.ToolCalls[0].ToolName)
	assert.Equal(t, "fetch", agent.ToolCalls[1].ToolName)
	assert.Equal(t, map[string]any{}, agent.ToolCalls[1].ToolArgs)

	assert.Equal(t, "Show json", msgs[2].Content)
	assert.Equal(t, "200", msgs[2].RunID)
	assert.Equal(t, "```json\n{\n  \"answer\": 1\n}\n```", msgs[3].Content)
	assert.Equal(t, "201", msgs[3].RunID)
	assert.Nil(t, msgs[3].ToolCalls)
}

func TestMessages_TopLevelRunsWin(t *testing.T) {
	d := decodeDetail(t, `{
		"session_id": "S1",
		"runs": [{"message": {"content": "new", "created_at": 1}}],
		"memory": {"runs": [{"message": {"content": "old", "created_at": 1}}]}
	}`)
	msgs := Messages(d, false, nil)
	require.Len(t, msgs, 1)
	assert.Equal(t, "new", msgs[0].Content)
}

func TestMessages_WorkflowEntries(t *testing.T) {
	d := decodeDetail(t, `{
		"session_id": "W-S1",
		"workflow_id": "w1",
		"memory": {"runs": [
			{"event": "UserMessage", "content": "plan a trip", "created_at": 10},
			{"event": "RunResponse", "content": "Booked.", "run_id": "R9"},
			{"event": "RunStarted", "content": "ignored"}
		]}
	}`)
	now := func() time.Time { return time.Unix(500, 0) }

	msgs := Messages(d, true, now)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "plan a trip", msgs[0].Content)
	assert.Equal(t, "10", msgs[0].RunID)
	assert.Equal(t, model.RoleAgent, msgs[1].Role)
	assert.Equal(t, "R9", msgs[1].RunID)
	assert.Equal(t, int64(500), msgs[1].CreatedAt)
	assert.Equal(t, "W-S1", msgs[1].SessionID)
}

func TestMessages_EmptyHistory(t *testing.T) {
	assert.Empty(t, Messages(&SessionDetail{SessionID: "S1"}, false, nil))
}

func TestRenderContent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "absent", raw: "", want: ""},
		{name: "null", raw: "null", want: ""},
		{name: "string", raw: `"hi"`, want: "hi"},
		{name: "text parts", raw: `[{"type":"text","text":"a"},{"type":"text","text":"b"}]`, want: "a b"},
		{name: "number", raw: `42`, want: "```json\n42\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, renderContent(json.RawMessage(tt.raw)))
		})
	}
}
