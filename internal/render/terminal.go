// ABOUTME: Colored terminal rendering of conversations, streamed updates, and session lists
// ABOUTME: Writes deltas as they arrive; tool calls, reasoning, and errors get their own lines

package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-playground/internal/conversation"
	"github.com/2389/coven-playground/internal/model"
)

// Terminal renders to a terminal-like writer.
type Terminal struct {
	w io.Writer

	user    *color.Color
	agent   *color.Color
	muted   *color.Color
	tool    *color.Color
	errText *color.Color
	heading *color.Color

	// midLine is true when streamed content left the cursor mid-line.
	midLine bool
}

// NewTerminal creates a renderer writing to w. Colors are disabled when
// noColor is set.
func NewTerminal(w io.Writer, noColor bool) *Terminal {
	t := &Terminal{
		w:       w,
		user:    color.New(color.FgGreen, color.Bold),
		agent:   color.New(color.FgCyan, color.Bold),
		muted:   color.New(color.FgHiBlack),
		tool:    color.New(color.FgYellow),
		errText: color.New(color.FgRed, color.Bold),
		heading: color.New(color.FgMagenta, color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{t.user, t.agent, t.muted, t.tool, t.errText, t.heading} {
			c.DisableColor()
		}
	}
	return t
}

// Update renders one streamed update.
func (t *Terminal) Update(u conversation.Update) {
	switch u.Kind {
	case conversation.UpdateStarted:
		t.agent.Fprint(t.w, "agent › ")
		t.midLine = true
	case conversation.UpdateDelta:
		fmt.Fprint(t.w, u.Delta)
		t.midLine = !strings.HasSuffix(u.Delta, "\n")
	case conversation.UpdateToolCalls:
		if n := len(u.Message.ToolCalls); n > 0 {
			t.breakLine()
			t.toolCall(u.Message.ToolCalls[n-1])
		}
	case conversation.UpdateSession:
		if u.SessionID != "" {
			t.breakLine()
			t.muted.Fprintf(t.w, "  session %s\n", u.SessionID)
		}
	case conversation.UpdateCompleted:
		t.breakLine()
		t.extras(u.Message)
	case conversation.UpdateFailed:
		t.breakLine()
		t.errText.Fprintf(t.w, "✗ %s\n", u.Err)
	}
}

func (t *Terminal) breakLine() {
	if t.midLine {
		fmt.Fprintln(t.w)
		t.midLine = false
	}
}

func (t *Terminal) toolCall(tc model.ToolCall) {
	t.tool.Fprintf(t.w, "  ⚙ %s", tc.ToolName)
	if len(tc.ToolArgs) > 0 {
		args, _ := json.Marshal(tc.ToolArgs)
		t.muted.Fprintf(t.w, " %s", args)
	}
	if tc.ToolCallError {
		t.errText.Fprint(t.w, " failed")
	}
	fmt.Fprintln(t.w)
}

// extras renders the non-content parts of an agent message.
func (t *Terminal) extras(m model.Message) {
	if m.Extra != nil {
		for _, step := range m.Extra.ReasoningSteps {
			t.muted.Fprintf(t.w, "  ∴ %s", step.Title)
			if step.Reasoning != "" {
				t.muted.Fprintf(t.w, ": %s", step.Reasoning)
			}
			fmt.Fprintln(t.w)
		}
		for _, ref := range m.Extra.References {
			t.muted.Fprintf(t.w, "  ↳ %d references for %q\n", len(ref.References), ref.Query)
		}
	}
	for _, img := range m.Images {
		t.muted.Fprintf(t.w, "  🖼 %s\n", img.URL)
	}
	for _, v := range m.Videos {
		t.muted.Fprintf(t.w, "  ▶ %s\n", v.URL)
	}
	if n := len(m.Audio); n > 0 {
		t.muted.Fprintf(t.w, "  ♪ %d audio clip(s)\n", n)
	}
	if m.ResponseAudio != nil && m.ResponseAudio.Transcript != "" {
		t.muted.Fprintf(t.w, "  ♪ %s\n", m.ResponseAudio.Transcript)
	}
}

// Message renders a complete message.
func (t *Terminal) Message(m model.Message) {
	if m.Role == model.RoleUser {
		t.user.Fprint(t.w, "you › ")
		fmt.Fprintln(t.w, m.Content)
		return
	}
	t.agent.Fprint(t.w, "agent › ")
	fmt.Fprintln(t.w, m.Content)
	for _, tc := range m.ToolCalls {
		t.toolCall(tc)
	}
	t.extras(m)
	if m.StreamingError {
		t.errText.Fprintln(t.w, "✗ response incomplete")
	}
}

// Conversation renders every message in order.
func (t *Terminal) Conversation(msgs []model.Message) {
	for _, m := range msgs {
		t.Message(m)
	}
}

// Sessions renders the session list, marking active.
func (t *Terminal) Sessions(sessions []model.Session, active string) {
	if len(sessions) == 0 {
		t.muted.Fprintln(t.w, "no sessions")
		return
	}
	for _, s := range sessions {
		marker := "  "
		if s.SessionID == active {
			marker = "* "
		}
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(t.w, "%s%s  %s", marker, s.SessionID, title)
		if s.CreatedAt > 0 {
			t.muted.Fprintf(t.w, "  %s", time.Unix(s.CreatedAt, 0).UTC().Format(time.DateTime))
		}
		fmt.Fprintln(t.w)
	}
}

// State renders a workflow session-state snapshot with sorted keys.
func (t *Terminal) State(state map[string]any) {
	if len(state) == 0 {
		t.muted.Fprintln(t.w, "no session state")
		return
	}
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, _ := json.Marshal(state[k])
		t.heading.Fprintf(t.w, "%s", k)
		fmt.Fprintf(t.w, ": %s\n", v)
	}
}

// Error renders an error banner.
func (t *Terminal) Error(msg string) {
	t.breakLine()
	t.errText.Fprintf(t.w, "✗ %s\n", msg)
}

// Heading renders a section heading.
func (t *Terminal) Heading(text string) {
	t.heading.Fprintln(t.w, text)
}
