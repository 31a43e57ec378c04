// ABOUTME: Tests for target selection, initialization, and session management
// ABOUTME: Covers saved targets, history loading, deletion, renaming, and branching

package playground

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-playground/internal/model"
	"github.com/2389/coven-playground/internal/store"
)

func TestInitialize_SelectsFirstAgent(t *testing.T) {
	f := newFixture(t, catalogMux())
	ctx := context.Background()

	cat, err := f.svc.Initialize(ctx, model.Target{})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, cat.Status)
	assert.Len(t, cat.Agents, 1)
	assert.Len(t, cat.Workflows, 1)
	assert.Equal(t, agentA1, f.svc.Target())
	assert.Equal(t, []model.Session{}, f.svc.Sessions())

	saved, err := f.store.GetPreference(ctx, store.PrefTarget)
	require.NoError(t, err)
	assert.Equal(t, "agent:a1", saved)
}

func TestInitialize_RestoresSavedTarget(t *testing.T) {
	f := newFixture(t, catalogMux())
	ctx := context.Background()
	require.NoError(t, f.store.SetPreference(ctx, store.PrefTarget, "workflow:w1"))

	_, err := f.svc.Initialize(ctx, model.Target{})
	require.NoError(t, err)
	assert.Equal(t, workflowW1, f.svc.Target())
}

func TestInitialize_IgnoresStaleSavedTarget(t *testing.T) {
	f := newFixture(t, catalogMux())
	ctx := context.Background()
	require.NoError(t, f.store.SetPreference(ctx, store.PrefTarget, "team:gone"))

	_, err := f.svc.Initialize(ctx, model.Target{})
	require.NoError(t, err)
	assert.Equal(t, agentA1, f.svc.Target())
}

func TestInitialize_PreferredTargetWins(t *testing.T) {
	f := newFixture(t, catalogMux())
	ctx := context.Background()
	require.NoError(t, f.store.SetPreference(ctx, store.PrefTarget, "agent:a1"))

	_, err := f.svc.Initialize(ctx, workflowW1)
	require.NoError(t, err)
	assert.Equal(t, workflowW1, f.svc.Target())
}

func TestInitialize_StatusFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/playground/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	f := newFixture(t, mux)

	_, err := f.svc.Initialize(context.Background(), model.Target{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checking endpoint status")
	assert.True(t, f.svc.Target().IsZero())
}

func TestSelect_WithoutStorageHasEmptySessions(t *testing.T) {
	var listed atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/playground/teams", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"team_id": "t1", "storage": false}})
	})
	mux.HandleFunc("GET /v1/playground/teams/t1/sessions", func(w http.ResponseWriter, r *http.Request) {
		listed.Add(1)
		writeJSON(w, http.StatusOK, []map[string]any{{"session_id": "X"}})
	})
	f := newFixture(t, mux)

	require.NoError(t, f.svc.Select(context.Background(), model.Target{Kind: model.TargetTeam, ID: "t1"}))
	assert.Equal(t, []model.Session{}, f.svc.Sessions())
	assert.Zero(t, listed.Load())
}

func TestSelect_LoadsSessions(t *testing.T) {
	mux := catalogMux()
	mux.HandleFunc("GET /v1/playground/agents/a1/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"session_id": "S2", "title": "second", "created_at": 20},
			{"session_id": "S1", "title": "first", "created_at": 10},
		})
	})
	f := newFixture(t, mux)

	require.NoError(t, f.svc.Select(context.Background(), agentA1))
	assert.Equal(t, []string{"S2", "S1"}, sessionIDs(f.svc.Sessions()))
}

func TestSelect_RequiresTarget(t *testing.T) {
	f := newFixture(t, catalogMux())
	assert.ErrorIs(t, f.svc.Select(context.Background(), model.Target{}), model.ErrNoTarget)
}

func agentSessionMux(fetches *atomic.Int32) *http.ServeMux {
	mux := catalogMux()
	mux.HandleFunc("GET /v1/playground/agents/a1/sessions/S1", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": "S1",
			"memory": map[string]any{"runs": []map[string]any{
				{
					"message":  map[string]any{"content": "Hi", "created_at": 100},
					"response": map[string]any{"content": "Hello!", "run_id": "R1", "created_at": 101},
				},
			}},
		})
	})
	return mux
}

func TestLoadSession_ReplacesMessages(t *testing.T) {
	var fetches atomic.Int32
	f := newFixture(t, agentSessionMux(&fetches))
	ctx := context.Background()
	require.NoError(t, f.svc.Select(ctx, agentA1))

	require.NoError(t, f.svc.LoadSession(ctx, "S1"))

	msgs := f.svc.Conversation().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi", msgs[0].Content)
	assert.Equal(t, "Hello!", msgs[1].Content)
	assert.Equal(t, "S1", f.svc.Conversation().SessionID())

	// Already showing S1: no refetch.
	require.NoError(t, f.svc.LoadSession(ctx, "S1"))
	assert.Equal(t, int32(1), fetches.Load())
}

func TestLoadSession_Errors(t *testing.T) {
	var fetches atomic.Int32
	f := newFixture(t, agentSessionMux(&fetches))
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.LoadSession(ctx, ""), ErrNoSession)
	assert.ErrorIs(t, f.svc.LoadSession(ctx, "S1"), model.ErrNoTarget)

	require.NoError(t, f.svc.Select(ctx, agentA1))
	err := f.svc.LoadSession(ctx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading session missing")
}

func TestLoadSession_WorkflowFallsBackToSavedState(t *testing.T) {
	mux := catalogMux()
	mux.HandleFunc("GET /v1/playground/workflows/w1/sessions/W1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": "W1",
			"runs": []map[string]any{
				{"event": "UserMessage", "content": "go", "created_at": 1},
				{"event": "RunResponse", "content": "went", "created_at": 2},
			},
		})
	})
	mux.HandleFunc("GET /v1/playground/workflows/w1/sessions/W1/state", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	f := newFixture(t, mux)
	ctx := context.Background()
	require.NoError(t, f.store.SaveSessionState(ctx, &store.SessionState{
		WorkflowID: "w1",
		SessionID:  "W1",
		State:      map[string]any{"cached": true},
	}))
	require.NoError(t, f.svc.Select(ctx, workflowW1))

	require.NoError(t, f.svc.LoadSession(ctx, "W1"))

	msgs := f.svc.Conversation().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "went", msgs[1].Content)
	assert.Equal(t, map[string]any{"cached": true}, f.svc.Conversation().WorkflowState())
}

func TestDeleteSession_ActiveSessionClearsConversation(t *testing.T) {
	var fetches atomic.Int32
	mux := agentSessionMux(&fetches)
	mux.HandleFunc("GET /v1/playground/agents/a1/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"session_id": "S1"}, {"session_id": "S0"}})
	})
	var deleted atomic.Bool
	mux.HandleFunc("DELETE /v1/playground/agents/a1/sessions/S1", func(w http.ResponseWriter, r *http.Request) {
		deleted.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})
	f := newFixture(t, mux)
	ctx := context.Background()
	require.NoError(t, f.svc.Select(ctx, agentA1))
	require.NoError(t, f.svc.LoadSession(ctx, "S1"))

	require.NoError(t, f.svc.DeleteSession(ctx, "S1"))

	assert.True(t, deleted.Load())
	assert.Equal(t, []string{"S0"}, sessionIDs(f.svc.Sessions()))
	assert.Empty(t, f.svc.Conversation().Messages())
	assert.Empty(t, f.svc.Conversation().SessionID())
}

func TestRenameSession(t *testing.T) {
	mux := catalogMux()
	mux.HandleFunc("GET /v1/playground/workflows/w1/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"session_id": "W1", "title": "old"}})
	})
	mux.HandleFunc("POST /v1/playground/workflows/w1/sessions/W1/rename", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	f := newFixture(t, mux)
	ctx := context.Background()

	require.NoError(t, f.svc.Select(ctx, agentA1))
	assert.ErrorIs(t, f.svc.RenameSession(ctx, "W1", "new"), ErrNotWorkflow)

	require.NoError(t, f.svc.Select(ctx, workflowW1))
	require.NoError(t, f.svc.RenameSession(ctx, "W1", "new"))
	require.Len(t, f.svc.Sessions(), 1)
	assert.Equal(t, "new", f.svc.Sessions()[0].Title)
}

func TestBranch(t *testing.T) {
	var fetches atomic.Int32
	mux := agentSessionMux(&fetches)
	mux.HandleFunc("POST /v1/playground/sessions/branch", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"session_id": "B1"})
	})
	mux.HandleFunc("GET /v1/playground/agents/a1/sessions/B1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": "B1",
			"runs": []map[string]any{
				{"message": map[string]any{"content": "Hi", "created_at": 100}},
			},
		})
	})
	f := newFixture(t, mux)
	ctx := context.Background()
	require.NoError(t, f.svc.Select(ctx, agentA1))

	_, err := f.svc.Branch(ctx, "R1")
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, f.svc.LoadSession(ctx, "S1"))
	id, err := f.svc.Branch(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "B1", id)
	assert.Equal(t, "B1", f.svc.Conversation().SessionID())
	assert.Len(t, f.svc.Conversation().Messages(), 1)
}

func TestClear(t *testing.T) {
	var fetches atomic.Int32
	f := newFixture(t, agentSessionMux(&fetches))
	ctx := context.Background()
	require.NoError(t, f.svc.Select(ctx, agentA1))
	require.NoError(t, f.svc.LoadSession(ctx, "S1"))

	require.NoError(t, f.svc.Clear())
	assert.Empty(t, f.svc.Conversation().Messages())
	assert.Empty(t, f.svc.Conversation().SessionID())
}
