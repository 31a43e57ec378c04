// ABOUTME: Drives the playground service against the fake backend end to end
// ABOUTME: Covers agent runs, session history, failures, branching, and workflow state

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-playground/internal/client"
	"github.com/2389/coven-playground/internal/conversation"
	"github.com/2389/coven-playground/internal/model"
	"github.com/2389/coven-playground/internal/playground"
	"github.com/2389/coven-playground/internal/store"
)

func newService(t *testing.T) (*playground.Service, *client.Client) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(newServer(0, logger).routes())
	t.Cleanup(srv.Close)

	c := client.New(srv.URL, client.WithLogger(logger))
	svc := playground.New(c,
		playground.WithDoer(srv.Client()),
		playground.WithStore(store.NewMockStore()),
		playground.WithLogger(logger),
	)
	return svc, c
}

func TestFake_AgentConversation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Initialize(ctx, model.Target{})
	require.NoError(t, err)
	assert.Equal(t, model.Target{Kind: model.TargetAgent, ID: echoAgent}, svc.Target())

	res, err := svc.Submit(ctx, "hello")
	require.NoError(t, err)
	require.False(t, res.Failed(), res.Err)
	assert.Equal(t, conversation.PhaseFinalized, res.Phase)
	assert.Equal(t, echoReply("hello"), res.Message.Content)
	require.NotEmpty(t, res.SessionID)

	sessions := svc.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, res.SessionID, sessions[0].SessionID)
	assert.Equal(t, "hello", sessions[0].Title)

	_, err = svc.Submit(ctx, "again")
	require.NoError(t, err)
	assert.Len(t, svc.Sessions(), 1)

	require.NoError(t, svc.Clear())
	require.NoError(t, svc.LoadSession(ctx, res.SessionID))
	msgs := svc.Conversation().Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, echoReply("again"), msgs[3].Content)
}

func TestFake_RunErrorKeepsPair(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.Initialize(ctx, model.Target{})
	require.NoError(t, err)

	res, err := svc.Submit(ctx, "please fail")
	require.NoError(t, err)
	assert.Equal(t, conversation.PhaseFailed, res.Phase)
	assert.Contains(t, res.Err, "asked to fail")

	msgs := svc.Conversation().Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].StreamingError)
}

func TestFake_Branch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.Initialize(ctx, model.Target{})
	require.NoError(t, err)

	first, err := svc.Submit(ctx, "one")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, "two")
	require.NoError(t, err)

	branched, err := svc.Branch(ctx, first.RunID)
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, branched)
	assert.Equal(t, branched, svc.Conversation().SessionID())
	assert.Len(t, svc.Conversation().Messages(), 2)
}

func TestFake_WorkflowState(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.Initialize(ctx, model.Target{Kind: model.TargetWorkflow, ID: echoWorkflow})
	require.NoError(t, err)

	res, err := svc.Submit(ctx, "hi")
	require.NoError(t, err)
	require.False(t, res.Failed(), res.Err)

	state := svc.Conversation().WorkflowState()
	require.NotNil(t, state)
	assert.Equal(t, "hi", state["last_message"])
}

func TestFake_TeamWithoutStorage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.Initialize(ctx, model.Target{Kind: model.TargetTeam, ID: echoTeam})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "hi")
	require.NoError(t, err)
	assert.Empty(t, svc.Sessions())
}

func TestFake_Documents(t *testing.T) {
	ctx := context.Background()
	_, c := newService(t)

	require.NoError(t, c.CreateDocument(ctx, "notes", "some text"))
	docs, err := c.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes", docs[0].Name)
	assert.NotEmpty(t, docs[0].ID)
}
