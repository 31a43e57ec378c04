// ABOUTME: Tests for message cloning, extra-data merging, and JSON content rendering
// ABOUTME: Clones must not share slices with the streaming message

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_CloneIsIndependent(t *testing.T) {
	m := &Message{
		Role:          RoleAgent,
		Content:       "hi",
		ToolCalls:     []ToolCall{{ToolCallID: "c1", ToolName: "search"}},
		Images:        []Image{{URL: "http://img/1"}},
		ResponseAudio: &ResponseAudio{Transcript: "he"},
		Extra:         &ExtraData{ReasoningSteps: []ReasoningStep{{Title: "think"}}},
	}
	c := m.Clone()

	m.ToolCalls[0].ToolName = "changed"
	m.Images = append(m.Images, Image{URL: "http://img/2"})
	m.ResponseAudio.Transcript += "llo"
	m.Extra.References = []ReferenceData{{Query: "q"}}

	assert.Equal(t, "search", c.ToolCalls[0].ToolName)
	assert.Len(t, c.Images, 1)
	assert.Equal(t, "he", c.ResponseAudio.Transcript)
	assert.Nil(t, c.Extra.References)
}

func TestExtraData_Merge(t *testing.T) {
	base := &ExtraData{
		ReasoningSteps: []ReasoningStep{{Title: "one"}},
		References:     []ReferenceData{{Query: "q1"}},
	}
	merged := base.Merge(&ExtraData{References: []ReferenceData{{Query: "q2"}}})

	assert.Equal(t, []ReasoningStep{{Title: "one"}}, merged.ReasoningSteps)
	assert.Equal(t, []ReferenceData{{Query: "q2"}}, merged.References)
	assert.Equal(t, "q1", base.References[0].Query, "receiver must not change")

	assert.Same(t, base, base.Merge(nil))

	var empty *ExtraData
	fromNil := empty.Merge(&ExtraData{ReasoningSteps: []ReasoningStep{{Title: "x"}}})
	assert.Len(t, fromNil.ReasoningSteps, 1)
}

func TestJSONMarkdown(t *testing.T) {
	got := JSONMarkdown(json.RawMessage(`{"a":1}`))
	assert.Equal(t, "```json\n{\n  \"a\": 1\n}\n```", got)

	invalid := JSONMarkdown(json.RawMessage(`not json`))
	assert.Equal(t, "```json\nnot json\n```", invalid)
}
