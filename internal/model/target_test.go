// ABOUTME: Tests for target resolution, parsing, and storage flag decoding
// ABOUTME: Resolution priority is team, then agent, then workflow

package model

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTarget(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name                  string
		agent, team, workflow string
		want                  Target
		wantErr               error
	}{
		{name: "agent only", agent: "a1", want: Target{Kind: TargetAgent, ID: "a1"}},
		{name: "team only", team: "t1", want: Target{Kind: TargetTeam, ID: "t1"}},
		{name: "workflow only", workflow: "w1", want: Target{Kind: TargetWorkflow, ID: "w1"}},
		{name: "team beats agent", agent: "a1", team: "t1", want: Target{Kind: TargetTeam, ID: "t1"}},
		{name: "agent beats workflow", agent: "a1", workflow: "w1", want: Target{Kind: TargetAgent, ID: "a1"}},
		{name: "all three", agent: "a1", team: "t1", workflow: "w1", want: Target{Kind: TargetTeam, ID: "t1"}},
		{name: "none", wantErr: ErrNoTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTarget(tt.agent, tt.team, tt.workflow, logger)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTarget_StringRoundTrip(t *testing.T) {
	tgt := Target{Kind: TargetWorkflow, ID: "w:1"}
	assert.Equal(t, "workflow:w:1", tgt.String())

	parsed, err := ParseTarget(tgt.String())
	require.NoError(t, err)
	assert.Equal(t, tgt, parsed)
	assert.True(t, parsed.IsWorkflow())
}

func TestParseTarget_Invalid(t *testing.T) {
	for _, s := range []string{"", "agent", "agent:", "robot:r1"} {
		_, err := ParseTarget(s)
		assert.Error(t, err, s)
	}
}

func TestTarget_Zero(t *testing.T) {
	var tgt Target
	assert.True(t, tgt.IsZero())
	assert.False(t, tgt.IsWorkflow())
	assert.Empty(t, tgt.String())
}

func TestStorageFlag(t *testing.T) {
	tests := map[string]bool{
		`true`:                true,
		`false`:               false,
		`null`:                false,
		`{"type":"postgres"}`: true,
		`"sqlite"`:            true,
	}
	for in, want := range tests {
		var entry Agent
		require.NoError(t, json.Unmarshal([]byte(`{"agent_id":"a1","storage":`+in+`}`), &entry), in)
		assert.Equal(t, want, bool(entry.Storage), in)
	}

	var missing Agent
	require.NoError(t, json.Unmarshal([]byte(`{"agent_id":"a1"}`), &missing))
	assert.False(t, bool(missing.Storage))
}
