// ABOUTME: Decodes one NDJSON record into a typed run event
// ABOUTME: Only records that are not JSON degrade to literal text; off-type fields are dropped

package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/2389/coven-playground/internal/model"
)

// Kind discriminates run events.
type Kind string

const (
	KindRunStarted       Kind = "RunStarted"
	KindReasoningStarted Kind = "ReasoningStarted"
	KindRunResponse      Kind = "RunResponse"
	KindRunCompleted     Kind = "RunCompleted"
	KindRunError         Kind = "RunError"

	// KindText is a record that could not be parsed; its raw text is agent content.
	KindText Kind = "text"
	// KindUnknown is a parsed record whose event kind is not recognized.
	KindUnknown Kind = "unknown"
)

// IsStart reports whether k may carry the session id for a new run.
func (k Kind) IsStart() bool {
	return k == KindRunStarted || k == KindReasoningStarted
}

// IsTerminal reports whether k ends a run.
func (k Kind) IsTerminal() bool {
	return k == KindRunCompleted || k == KindRunError
}

// Payload is the wire shape of a run record.
type Payload struct {
	Event         string               `json:"event"`
	Content       json.RawMessage      `json:"content,omitempty"`
	ContentType   string               `json:"content_type,omitempty"`
	RunID         string               `json:"run_id,omitempty"`
	SessionID     string               `json:"session_id,omitempty"`
	AgentID       string               `json:"agent_id,omitempty"`
	TeamID        string               `json:"team_id,omitempty"`
	WorkflowID    string               `json:"workflow_id,omitempty"`
	CreatedAt     *int64               `json:"created_at,omitempty"`
	Tools         []model.ToolCall     `json:"tools,omitempty"`
	Images        []model.Image        `json:"images,omitempty"`
	Videos        []model.Video        `json:"videos,omitempty"`
	Audio         []model.Audio        `json:"audio,omitempty"`
	ResponseAudio *model.ResponseAudio `json:"response_audio,omitempty"`
	ExtraData     *model.ExtraData     `json:"extra_data,omitempty"`
}

// HasContent reports whether the record carries a non-null content field.
func (p *Payload) HasContent() bool {
	c := bytes.TrimSpace(p.Content)
	return len(c) > 0 && !bytes.Equal(c, []byte("null"))
}

// Text returns the content as a string when it is a JSON string.
func (p *Payload) Text() (string, bool) {
	if !p.HasContent() {
		return "", false
	}
	var s string
	if err := json.Unmarshal(p.Content, &s); err != nil {
		return "", false
	}
	return s, true
}

// DecodeError records a record that failed to parse. It is never fatal.
type DecodeError struct {
	Record string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding record: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Event is a decoded record.
type Event struct {
	Kind    Kind
	Payload *Payload
	// Text holds the raw record for KindText.
	Text string
	// Err is set for KindText and explains why the record did not parse.
	Err *DecodeError
	// Skipped lists fields whose values had an unexpected type and were dropped.
	Skipped []string
}

// Decode parses one record. It never fails: input that is not JSON becomes
// KindText. Fields of an unexpected type are coerced when they are numbers and
// otherwise dropped without affecting the rest of the record.
func Decode(record string) Event {
	data := []byte(record)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		if !json.Valid(data) {
			return Event{
				Kind: KindText,
				Text: record,
				Err:  &DecodeError{Record: record, Err: err},
			}
		}
		// Valid JSON that is not an object carries no event.
		return Event{Kind: KindUnknown, Payload: &Payload{}}
	}

	var p Payload
	skipped := decodeFields(fields, reflect.ValueOf(&p).Elem(), "")

	switch k := Kind(p.Event); k {
	case KindRunStarted, KindReasoningStarted, KindRunResponse, KindRunCompleted, KindRunError:
		return Event{Kind: k, Payload: &p, Skipped: skipped}
	default:
		return Event{Kind: KindUnknown, Payload: &p, Skipped: skipped}
	}
}
