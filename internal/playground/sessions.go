// ABOUTME: Target selection, initialization, and session management for the playground service
// ABOUTME: Loads session lists and history, deletes, renames, and branches sessions

package playground

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/coven-playground/internal/client"
	"github.com/2389/coven-playground/internal/conversation"
	"github.com/2389/coven-playground/internal/model"
	"github.com/2389/coven-playground/internal/store"
)

// Catalog is what the backend offers.
type Catalog struct {
	Status    int
	Agents    []model.Agent
	Teams     []model.Team
	Workflows []model.Workflow
}

// Contains reports whether t names an entry of the catalog.
func (c *Catalog) Contains(t model.Target) bool {
	switch t.Kind {
	case model.TargetAgent:
		for _, a := range c.Agents {
			if a.AgentID == t.ID {
				return true
			}
		}
	case model.TargetTeam:
		for _, team := range c.Teams {
			if team.TeamID == t.ID {
				return true
			}
		}
	case model.TargetWorkflow:
		for _, wf := range c.Workflows {
			if wf.WorkflowID == t.ID {
				return true
			}
		}
	}
	return false
}

// Initialize checks the endpoint, lists what it offers, and selects a target:
// preferred when set, else the last target saved locally, else the first agent.
func (s *Service) Initialize(ctx context.Context, preferred model.Target) (*Catalog, error) {
	status, err := s.backend.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking endpoint status: %w", err)
	}
	cat := &Catalog{Status: status}

	if cat.Agents, err = s.backend.Agents(ctx); err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	if cat.Teams, err = s.backend.Teams(ctx); err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	if cat.Workflows, err = s.backend.Workflows(ctx); err != nil {
		return nil, fmt.Errorf("listing workflows: %w", err)
	}

	target := preferred
	if target.IsZero() {
		target = s.savedTarget(ctx, cat)
	}
	if target.IsZero() && len(cat.Agents) > 0 {
		target = model.Target{Kind: model.TargetAgent, ID: cat.Agents[0].AgentID}
	}
	if target.IsZero() {
		s.logger.Warn("endpoint offers no agents, teams, or workflows")
		return cat, nil
	}

	if err := s.Select(ctx, target); err != nil {
		return cat, err
	}
	return cat, nil
}

// savedTarget returns the last selected target if the catalog still offers it.
func (s *Service) savedTarget(ctx context.Context, cat *Catalog) model.Target {
	if s.store == nil {
		return model.Target{}
	}
	raw, err := s.store.GetPreference(ctx, store.PrefTarget)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to read saved target", "error", err)
		}
		return model.Target{}
	}
	t, err := model.ParseTarget(raw)
	if err != nil || !cat.Contains(t) {
		s.logger.Debug("ignoring saved target", "target", raw)
		return model.Target{}
	}
	return t
}

// Select switches to t, starting a new conversation and loading its sessions.
func (s *Service) Select(ctx context.Context, t model.Target) error {
	if t.IsZero() {
		return model.ErrNoTarget
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunInProgress
	}
	s.target = t
	s.mu.Unlock()

	hasStorage, err := s.backend.HasStorage(ctx, t)
	if err != nil {
		s.logger.Warn("failed to check target storage", "target", t.String(), "error", err)
		hasStorage = false
	}

	s.conv.Update(func(st *conversation.State) {
		st.Messages = nil
		st.Sessions = nil
		st.SessionID = ""
		st.StreamErr = ""
		st.WorkflowState = nil
		st.HasStorage = hasStorage
	})

	if s.store != nil {
		if err := s.store.SetPreference(ctx, store.PrefTarget, t.String()); err != nil {
			s.logger.Warn("failed to save target", "error", err)
		}
	}

	s.logger.Info("target selected", "target", t.String(), "storage", hasStorage)

	if _, err := s.LoadSessions(ctx); err != nil {
		return err
	}
	return nil
}

// LoadSessions refreshes the session list of the selected target. A target
// without storage has an empty list.
func (s *Service) LoadSessions(ctx context.Context) ([]model.Session, error) {
	t := s.Target()
	if t.IsZero() {
		return nil, model.ErrNoTarget
	}

	var hasStorage bool
	s.conv.View(func(st *conversation.State) { hasStorage = st.HasStorage })

	sessions := []model.Session{}
	if hasStorage {
		list, err := s.backend.Sessions(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("loading sessions: %w", err)
		}
		sessions = list
	}

	s.conv.Update(func(st *conversation.State) {
		st.Sessions = sessions
	})
	return append([]model.Session(nil), sessions...), nil
}

// Sessions returns the loaded session list.
func (s *Service) Sessions() []model.Session {
	return s.conv.Sessions()
}

// LoadSession replaces the conversation with the history of sessionID. It
// does nothing when the conversation already shows that session.
func (s *Service) LoadSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	t := s.Target()
	if t.IsZero() {
		return model.ErrNoTarget
	}
	if s.isRunning() {
		return ErrRunInProgress
	}

	loaded := false
	s.conv.View(func(st *conversation.State) {
		if n := len(st.Messages); n > 0 && st.Messages[n-1].SessionID == sessionID {
			loaded = true
		}
	})
	if loaded {
		s.logger.Debug("session already loaded", "session_id", sessionID)
		return nil
	}

	detail, err := s.backend.Session(ctx, t, sessionID)
	if err != nil {
		return fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	msgs := client.Messages(detail, t.IsWorkflow(), s.now)

	s.conv.Update(func(st *conversation.State) {
		st.Messages = msgs
		st.SessionID = sessionID
		st.StreamErr = ""
		st.WorkflowState = nil
	})

	if t.IsWorkflow() {
		if err := s.fetchSessionState(ctx, t.ID, sessionID); err != nil {
			s.logger.Warn("failed to fetch session state", "session_id", sessionID, "error", err)
			s.restoreSessionState(ctx, t.ID, sessionID)
		}
	}

	s.logger.Info("session loaded", "session_id", sessionID, "messages", len(msgs))
	return nil
}

// restoreSessionState falls back to the locally saved snapshot.
func (s *Service) restoreSessionState(ctx context.Context, workflowID, sessionID string) {
	if s.store == nil {
		return
	}
	saved, err := s.store.GetSessionState(ctx, workflowID, sessionID)
	if err != nil {
		return
	}
	s.conv.Update(func(st *conversation.State) {
		if st.SessionID == sessionID {
			st.WorkflowState = saved.State
		}
	})
}

// Clear starts a new conversation with the selected target.
func (s *Service) Clear() error {
	if s.isRunning() {
		return ErrRunInProgress
	}
	s.conv.Clear()
	return nil
}

// DeleteSession deletes sessionID on the backend and drops it locally.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	t := s.Target()
	if t.IsZero() {
		return model.ErrNoTarget
	}
	if err := s.backend.DeleteSession(ctx, t, sessionID); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}

	active := false
	s.conv.Update(func(st *conversation.State) {
		s.corr.Evict(st, sessionID)
		active = st.SessionID == sessionID
	})
	if active && !s.isRunning() {
		s.conv.Clear()
	}

	if s.store != nil && t.IsWorkflow() {
		if err := s.store.DeleteSessionState(ctx, t.ID, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to delete saved session state", "error", err)
		}
	}
	s.logger.Info("session deleted", "session_id", sessionID)
	return nil
}

// RenameSession renames a workflow session.
func (s *Service) RenameSession(ctx context.Context, sessionID, name string) error {
	t := s.Target()
	if !t.IsWorkflow() {
		return ErrNotWorkflow
	}
	if err := s.backend.RenameWorkflowSession(ctx, t.ID, sessionID, name); err != nil {
		return fmt.Errorf("renaming session %s: %w", sessionID, err)
	}
	s.conv.Update(func(st *conversation.State) {
		for i := range st.Sessions {
			if st.Sessions[i].SessionID == sessionID {
				st.Sessions[i].Title = name
			}
		}
	})
	return nil
}

// Branch clones the active session up to runID into a new session and loads it.
func (s *Service) Branch(ctx context.Context, runID string) (string, error) {
	source := s.conv.SessionID()
	if source == "" {
		return "", ErrNoSession
	}
	id, err := s.backend.BranchSession(ctx, source, runID)
	if err != nil {
		return "", fmt.Errorf("branching session %s: %w", source, err)
	}
	if _, err := s.LoadSessions(ctx); err != nil {
		s.logger.Warn("failed to reload sessions after branch", "error", err)
	}
	if err := s.LoadSession(ctx, id); err != nil {
		return id, err
	}
	return id, nil
}

// RefreshSessionState fetches the snapshot of the active workflow session
// unless one was fetched within the refresh interval. It reports whether a
// fetch happened.
func (s *Service) RefreshSessionState(ctx context.Context) (bool, error) {
	t := s.Target()
	if !t.IsWorkflow() {
		return false, nil
	}
	sessionID := s.conv.SessionID()
	if sessionID == "" || s.isRunning() {
		return false, nil
	}
	if !s.throttle.Allow(stateKey(t.ID, sessionID)) {
		return false, nil
	}
	if err := s.fetchSessionState(ctx, t.ID, sessionID); err != nil {
		s.throttle.Forget(stateKey(t.ID, sessionID))
		return false, err
	}
	return true, nil
}

func (s *Service) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
