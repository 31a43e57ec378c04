// ABOUTME: Tests for terminal rendering and HTML export
// ABOUTME: Terminal output is checked with colors disabled

package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-playground/internal/conversation"
	"github.com/2389/coven-playground/internal/model"
)

func TestTerminal_StreamedUpdates(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, true)

	term.Update(conversation.Update{Kind: conversation.UpdateStarted})
	term.Update(conversation.Update{Kind: conversation.UpdateSession, SessionID: "S1"})
	term.Update(conversation.Update{Kind: conversation.UpdateDelta, Delta: "Hi"})
	term.Update(conversation.Update{Kind: conversation.UpdateDelta, Delta: " there"})
	term.Update(conversation.Update{
		Kind: conversation.UpdateToolCalls,
		Message: model.Message{ToolCalls: []model.ToolCall{
			{ToolName: "search", ToolArgs: map[string]any{"q": "go"}},
		}},
	})
	term.Update(conversation.Update{Kind: conversation.UpdateCompleted})

	assert.Equal(t, "agent › \n  session S1\nHi there\n  ⚙ search {\"q\":\"go\"}\n", buf.String())
}

func TestTerminal_Failed(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, true)

	term.Update(conversation.Update{Kind: conversation.UpdateDelta, Delta: "partial"})
	term.Update(conversation.Update{Kind: conversation.UpdateFailed, Err: "boom"})

	assert.Equal(t, "partial\n✗ boom\n", buf.String())
}

func TestTerminal_Conversation(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, true)

	term.Conversation([]model.Message{
		{Role: model.RoleUser, Content: "Hello"},
		{
			Role:           model.RoleAgent,
			Content:        "Hi",
			StreamingError: true,
			Extra: &model.ExtraData{
				ReasoningSteps: []model.ReasoningStep{{Title: "Plan", Reasoning: "greet back"}},
			},
			Images: []model.Image{{URL: "https://img.test/1.png"}},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "you › Hello\n")
	assert.Contains(t, out, "agent › Hi\n")
	assert.Contains(t, out, "∴ Plan: greet back")
	assert.Contains(t, out, "https://img.test/1.png")
	assert.Contains(t, out, "response incomplete")
}

func TestTerminal_Sessions(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, true)

	term.Sessions([]model.Session{
		{SessionID: "S2", Title: "second"},
		{SessionID: "S1", CreatedAt: 0},
	}, "S1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "  S2  second", lines[0])
	assert.Equal(t, "* S1  (untitled)", lines[1])

	buf.Reset()
	term.Sessions(nil, "")
	assert.Equal(t, "no sessions\n", buf.String())
}

func TestTerminal_State(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, true)

	term.State(map[string]any{"b": 2, "a": "x"})
	assert.Equal(t, "a: \"x\"\nb: 2\n", buf.String())
}

func TestExportHTML(t *testing.T) {
	var buf bytes.Buffer
	exported := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	err := ExportHTML(&buf, "Trip <plan>", []model.Message{
		{Role: model.RoleUser, Content: "Plan a **trip**"},
		{
			Role:      model.RoleAgent,
			Content:   "```json\n{\"days\": 3}\n```\n<script>alert(1)</script>",
			ToolCalls: []model.ToolCall{{ToolName: "weather"}},
		},
	}, exported)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<title>Trip &lt;plan&gt;</title>")
	assert.Contains(t, out, "Exported 2025-03-01T12:00:00Z")
	assert.Contains(t, out, "<h2>You</h2>")
	assert.Contains(t, out, "<strong>trip</strong>")
	assert.Contains(t, out, `<code class="language-json">`)
	assert.Contains(t, out, "<code>weather</code>")
	assert.NotContains(t, out, "<script>alert(1)</script>")
}
