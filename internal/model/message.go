// ABOUTME: Conversation data types shared by the stream decoder, reconciler, and API client
// ABOUTME: Defines Message, Session, tool calls, media, and reasoning metadata

package model

import (
	"bytes"
	"encoding/json"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// ToolCall is a single tool invocation reported by the agent. Content is the
// tool result, which backends send as a string or as structured JSON.
type ToolCall struct {
	Role          string         `json:"role,omitempty"`
	Content       any            `json:"content,omitempty"`
	ToolCallID    string         `json:"tool_call_id"`
	ToolName      string         `json:"tool_name"`
	ToolArgs      map[string]any `json:"tool_args,omitempty"`
	ToolCallError bool           `json:"tool_call_error,omitempty"`
	Metrics       ToolMetrics    `json:"metrics"`
	CreatedAt     int64          `json:"created_at"`
}

// ToolMetrics holds timing data for a tool call.
type ToolMetrics struct {
	Time float64 `json:"time"`
}

// Image is an image attached to an agent response.
type Image struct {
	URL           string `json:"url"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// Video is a video attached to an agent response.
type Video struct {
	ID  int    `json:"id"`
	ETA int    `json:"eta,omitempty"`
	URL string `json:"url"`
}

// Audio is an audio clip attached to an agent response.
type Audio struct {
	Base64Audio  string `json:"base64_audio,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	URL          string `json:"url,omitempty"`
	ID           string `json:"id,omitempty"`
	Content      string `json:"content,omitempty"`
	ChannelCount int    `json:"channel_count,omitempty"`
	SampleRate   int    `json:"sample_rate,omitempty"`
}

// ResponseAudio is spoken output produced by the model. Transcript grows while streaming.
type ResponseAudio struct {
	ID         string `json:"id,omitempty"`
	Content    string `json:"content,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	ExpiresAt  int64  `json:"expires_at,omitempty"`
}

// ReasoningStep is one step of a model's visible reasoning.
type ReasoningStep struct {
	Title      string  `json:"title"`
	Action     string  `json:"action,omitempty"`
	Result     string  `json:"result"`
	Reasoning  string  `json:"reasoning"`
	NextAction string  `json:"next_action,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ReasoningMessage is a raw message from the reasoning trace. Messages with
// role "tool" are folded into tool calls when loading history.
type ReasoningMessage struct {
	Role          string         `json:"role"`
	Content       *string        `json:"content"`
	ToolCallID    string         `json:"tool_call_id,omitempty"`
	ToolName      string         `json:"tool_name,omitempty"`
	ToolArgs      map[string]any `json:"tool_args,omitempty"`
	ToolCallError bool           `json:"tool_call_error,omitempty"`
	Metrics       *ToolMetrics   `json:"metrics,omitempty"`
	CreatedAt     int64          `json:"created_at,omitempty"`
}

// Reference is a knowledge-base chunk cited by the agent.
type Reference struct {
	Content  string            `json:"content"`
	MetaData ReferenceMetaData `json:"meta_data"`
	Name     string            `json:"name"`
}

// ReferenceMetaData locates a reference chunk in its source document.
type ReferenceMetaData struct {
	Chunk     int `json:"chunk"`
	ChunkSize int `json:"chunk_size"`
}

// ReferenceData groups the references retrieved for one query.
type ReferenceData struct {
	Query      string      `json:"query"`
	References []Reference `json:"references"`
	Time       float64     `json:"time,omitempty"`
}

// ExtraData carries reasoning and retrieval metadata.
type ExtraData struct {
	ReasoningSteps    []ReasoningStep    `json:"reasoning_steps,omitempty"`
	ReasoningMessages []ReasoningMessage `json:"reasoning_messages,omitempty"`
	References        []ReferenceData    `json:"references,omitempty"`
}

// Merge returns a shallow merge of e and newer. Fields set on newer win.
func (e *ExtraData) Merge(newer *ExtraData) *ExtraData {
	if newer == nil {
		return e
	}
	out := &ExtraData{}
	if e != nil {
		*out = *e
	}
	if newer.ReasoningSteps != nil {
		out.ReasoningSteps = newer.ReasoningSteps
	}
	if newer.ReasoningMessages != nil {
		out.ReasoningMessages = newer.ReasoningMessages
	}
	if newer.References != nil {
		out.References = newer.References
	}
	return out
}

// Message is one entry of the conversation. Agent messages are mutated in place
// while their run is streaming.
type Message struct {
	Role           Role           `json:"role"`
	Content        string         `json:"content"`
	ToolCalls      []ToolCall     `json:"tool_calls,omitempty"`
	Images         []Image        `json:"images,omitempty"`
	Videos         []Video        `json:"videos,omitempty"`
	Audio          []Audio        `json:"audio,omitempty"`
	ResponseAudio  *ResponseAudio `json:"response_audio,omitempty"`
	Extra          *ExtraData     `json:"extra_data,omitempty"`
	CreatedAt      int64          `json:"created_at"`
	RunID          string         `json:"run_id,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
	StreamingError bool           `json:"streaming_error,omitempty"`
}

// Clone returns a copy that shares no mutable slices with m.
func (m *Message) Clone() Message {
	out := *m
	out.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	out.Images = append([]Image(nil), m.Images...)
	out.Videos = append([]Video(nil), m.Videos...)
	out.Audio = append([]Audio(nil), m.Audio...)
	if m.ResponseAudio != nil {
		ra := *m.ResponseAudio
		out.ResponseAudio = &ra
	}
	if m.Extra != nil {
		extra := *m.Extra
		out.Extra = &extra
	}
	return out
}

// Session is an entry of the session list.
type Session struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
}

// JSONMarkdown renders structured content as a fenced json block.
func JSONMarkdown(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	return "```json\n" + buf.String() + "\n```"
}
