// ABOUTME: Playground service: drives one run at a time from submit to terminal housekeeping
// ABOUTME: Wires transport, splitter, decoder, and reconciler to the conversation store and run log

package playground

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-playground/internal/client"
	"github.com/2389/coven-playground/internal/conversation"
	"github.com/2389/coven-playground/internal/dedupe"
	"github.com/2389/coven-playground/internal/model"
	"github.com/2389/coven-playground/internal/store"
	"github.com/2389/coven-playground/internal/stream"
)

var (
	// ErrEmptyInput is returned by Submit for blank input.
	ErrEmptyInput = errors.New("input is empty")
	// ErrRunInProgress is returned when a run is already streaming.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrNotWorkflow is returned by workflow-only operations.
	ErrNotWorkflow = errors.New("selected target is not a workflow")
	// ErrNoSession is returned when an operation needs an active session.
	ErrNoSession = errors.New("no active session")
)

// persistTimeout bounds run-log and snapshot writes.
const persistTimeout = 5 * time.Second

// Backend defines what the service needs from the playground REST API.
type Backend interface {
	BaseURL() string
	Status(ctx context.Context) (int, error)
	Agents(ctx context.Context) ([]model.Agent, error)
	Teams(ctx context.Context) ([]model.Team, error)
	Workflows(ctx context.Context) ([]model.Workflow, error)
	HasStorage(ctx context.Context, t model.Target) (bool, error)
	Sessions(ctx context.Context, t model.Target) ([]model.Session, error)
	Session(ctx context.Context, t model.Target, sessionID string) (*client.SessionDetail, error)
	DeleteSession(ctx context.Context, t model.Target, sessionID string) error
	RenameWorkflowSession(ctx context.Context, workflowID, sessionID, name string) error
	WorkflowSessionState(ctx context.Context, workflowID, sessionID string) (map[string]any, error)
	BranchSession(ctx context.Context, sourceSessionID, runID string) (string, error)
}

// Result summarizes a finished run.
type Result struct {
	LocalID   string
	RunID     string
	SessionID string
	Phase     conversation.Phase
	Err       string
	Message   model.Message
}

// Failed reports whether the run ended in error.
func (r *Result) Failed() bool {
	return r.Phase == conversation.PhaseFailed || r.Phase == conversation.PhaseAborted
}

// Service owns the conversation for the selected target.
type Service struct {
	backend Backend
	store   store.Store
	conv    *conversation.Store
	bus     *conversation.Broadcaster
	corr    *conversation.Correlator
	doer    stream.Doer
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	refreshInterval time.Duration
	throttle        *dedupe.Cache

	mu      sync.Mutex
	target  model.Target
	running bool
}

// Option configures a Service.
type Option func(*Service)

// WithStore enables local persistence of the run log, session-state
// snapshots, and the last selected target.
func WithStore(s store.Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithBroadcaster sets the update fan-out.
func WithBroadcaster(b *conversation.Broadcaster) Option {
	return func(svc *Service) { svc.bus = b }
}

// WithDoer sets the HTTP client used for streaming runs. It must not impose
// a total request timeout.
func WithDoer(d stream.Doer) Option {
	return func(svc *Service) { svc.doer = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(svc *Service) { svc.logger = logger }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// WithSessionIDs sets the generator for client-side workflow session ids.
func WithSessionIDs(newID func() string) Option {
	return func(svc *Service) { svc.newID = newID }
}

// WithRefreshInterval sets the minimum spacing of session-state fetches.
func WithRefreshInterval(d time.Duration) Option {
	return func(svc *Service) { svc.refreshInterval = d }
}

// New creates a Service backed by backend.
func New(backend Backend, opts ...Option) *Service {
	s := &Service{
		backend:         backend,
		conv:            conversation.NewStore(),
		doer:            &http.Client{},
		logger:          slog.Default(),
		now:             time.Now,
		refreshInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "playground")
	if s.bus == nil {
		s.bus = conversation.NewBroadcaster(s.logger)
	}
	s.corr = conversation.NewCorrelator(s.newID, s.logger)
	s.throttle = dedupe.New(s.refreshInterval, 256, dedupe.WithClock(s.now))
	return s
}

// Conversation returns the conversation store for rendering.
func (s *Service) Conversation() *conversation.Store { return s.conv }

// Target returns the selected target.
func (s *Service) Target() model.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Subscribe returns updates for runs against t until ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context, t model.Target) <-chan conversation.Update {
	ch, _ := s.bus.Subscribe(ctx, t.String())
	return ch
}

// Submit sends input to the selected target and folds the streamed response
// into the conversation. Transport and run failures are reported through the
// Result and the store, not as errors.
func (s *Service) Submit(ctx context.Context, input string) (*Result, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}

	s.mu.Lock()
	target := s.target
	if target.IsZero() {
		s.mu.Unlock()
		return nil, model.ErrNoTarget
	}
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	return s.run(ctx, target, input), nil
}

func (s *Service) run(ctx context.Context, target model.Target, input string) *Result {
	key := target.String()
	rec := conversation.NewReconciler(target,
		conversation.WithCorrelator(s.corr),
		conversation.WithLogger(s.logger),
		conversation.WithClock(s.now))

	var effects []conversation.Effect
	var sessionID string
	s.conv.Update(func(st *conversation.State) {
		effects = rec.Begin(st, input)
		sessionID = st.SessionID
	})
	s.handleEffects(ctx, effects)
	s.bus.Publish(key, conversation.Update{Kind: conversation.UpdateStarted, SessionID: sessionID})

	runLog := &store.RunRecord{
		ID:        uuid.New().String(),
		Target:    key,
		SessionID: sessionID,
		Input:     input,
		Outcome:   store.RunOutcomeRunning,
		StartedAt: s.now(),
	}
	s.startRun(ctx, runLog)

	s.logger.Info("run started", "target", key, "session_id", sessionID)

	body, err := stream.Open(ctx, s.doer, s.buildRequest(target, input, sessionID))
	if err != nil {
		s.abort(ctx, key, rec, err)
	} else {
		s.fold(ctx, key, rec, body)
		if cerr := body.Close(); cerr != nil {
			s.logger.Debug("closing stream body", "error", cerr)
		}
	}

	var msg model.Message
	s.conv.Update(func(st *conversation.State) {
		effects = rec.Finish(st)
		if open := st.Open(); open != nil {
			msg = open.Clone()
		}
	})
	s.handleEffects(ctx, effects)

	res := &Result{
		LocalID:   runLog.ID,
		RunID:     rec.RunID(),
		SessionID: rec.SessionID(),
		Phase:     rec.Phase(),
		Err:       rec.Err(),
		Message:   msg,
	}

	final := conversation.Update{Kind: conversation.UpdateCompleted, RunID: res.RunID, SessionID: res.SessionID, Message: msg}
	if res.Failed() {
		final.Kind = conversation.UpdateFailed
		final.Err = res.Err
	}
	s.bus.Publish(key, final)
	s.finishRun(ctx, runLog, res)

	s.logger.Info("run finished",
		"target", key,
		"run_id", res.RunID,
		"session_id", res.SessionID,
		"phase", res.Phase)
	return res
}

// buildRequest encodes input for target. Workflows take JSON; agents and
// teams take multipart form fields.
func (s *Service) buildRequest(target model.Target, input, sessionID string) *stream.Request {
	req := &stream.Request{URL: client.RunURL(s.backend.BaseURL(), target)}
	if target.IsWorkflow() {
		req.JSON = map[string]any{
			"input":      map[string]any{"user_message": input},
			"user_id":    nil,
			"session_id": sessionID,
		}
		req.Header = map[string]string{
			"Content-Type": "application/json",
			"Accept":       "*/*",
		}
		return req
	}
	req.Form = []stream.FormField{
		{Name: "message", Value: input},
		{Name: "stream", Value: "true"},
		{Name: "session_id", Value: sessionID},
	}
	return req
}

// fold applies records in arrival order until the body ends or the run
// reaches a terminal state.
func (s *Service) fold(ctx context.Context, key string, rec *conversation.Reconciler, body *stream.Body) {
	splitter := stream.NewSplitter(body, s.logger)
	for {
		record, err := splitter.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.abort(ctx, key, rec, err)
			}
			return
		}

		ev := stream.Decode(record)

		var effects []conversation.Effect
		var before, after model.Message
		s.conv.Update(func(st *conversation.State) {
			if open := st.Open(); open != nil {
				before = open.Clone()
			}
			effects = rec.Apply(st, ev)
			if open := st.Open(); open != nil {
				after = open.Clone()
			}
		})
		s.handleEffects(ctx, effects)
		s.publishChange(key, rec, before, after, effects)

		if rec.Phase().Terminal() {
			return
		}
	}
}

// abort records a transport-level failure on the open message.
func (s *Service) abort(ctx context.Context, key string, rec *conversation.Reconciler, err error) {
	s.logger.Warn("stream aborted", "target", key, "error", err)
	var effects []conversation.Effect
	s.conv.Update(func(st *conversation.State) {
		effects = rec.Abort(st, err)
	})
	s.handleEffects(ctx, effects)
}

// publishChange fans out what one applied event changed.
func (s *Service) publishChange(key string, rec *conversation.Reconciler, before, after model.Message, effects []conversation.Effect) {
	base := conversation.Update{RunID: rec.RunID(), SessionID: rec.SessionID(), Message: after}

	for _, e := range effects {
		if e.Kind == conversation.EffectSessionChanged {
			u := base
			u.Kind = conversation.UpdateSession
			u.SessionID = e.SessionID
			s.bus.Publish(key, u)
		}
	}

	if after.Content != before.Content {
		u := base
		u.Kind = conversation.UpdateDelta
		if strings.HasPrefix(after.Content, before.Content) {
			u.Delta = after.Content[len(before.Content):]
		} else {
			u.Delta = after.Content
		}
		s.bus.Publish(key, u)
	}

	if len(after.ToolCalls) != len(before.ToolCalls) {
		u := base
		u.Kind = conversation.UpdateToolCalls
		s.bus.Publish(key, u)
	}
}

// handleEffects carries out side effects the reconciler left to the caller.
func (s *Service) handleEffects(ctx context.Context, effects []conversation.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case conversation.EffectFetchSessionState:
			// The run may have been cancelled; the snapshot is still wanted.
			if err := s.fetchSessionState(context.WithoutCancel(ctx), e.WorkflowID, e.SessionID); err != nil {
				s.logger.Warn("failed to fetch session state",
					"workflow_id", e.WorkflowID,
					"session_id", e.SessionID,
					"error", err)
				s.dropSessionState(e.SessionID)
			}
		case conversation.EffectClearSessionState:
			s.logger.Debug("session state cleared")
		case conversation.EffectStreamError:
			s.logger.Warn("run failed", "error", e.Err)
		default:
			s.logger.Debug("session list changed", "effect", e.Kind, "session_id", e.SessionID)
		}
	}
}

func (s *Service) startRun(ctx context.Context, run *store.RunRecord) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.store.StartRun(ctx, run); err != nil {
		s.logger.Error("failed to record run start", "error", err, "run", run.ID)
	}
}

func (s *Service) finishRun(ctx context.Context, run *store.RunRecord, res *Result) {
	if s.store == nil {
		return
	}
	finished := s.now()
	run.RunID = res.RunID
	run.SessionID = res.SessionID
	run.FinishedAt = &finished
	run.Error = res.Err
	switch res.Phase {
	case conversation.PhaseFailed:
		run.Outcome = store.RunOutcomeFailed
	case conversation.PhaseAborted:
		run.Outcome = store.RunOutcomeAborted
	default:
		run.Outcome = store.RunOutcomeCompleted
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.store.FinishRun(ctx, run); err != nil {
		s.logger.Error("failed to record run outcome", "error", err, "run", run.ID)
	}
}

// fetchSessionState loads the snapshot for a workflow session, stores it on
// the conversation when that session is still active, and saves it locally.
func (s *Service) fetchSessionState(ctx context.Context, workflowID, sessionID string) error {
	snapshot, err := s.backend.WorkflowSessionState(ctx, workflowID, sessionID)
	if err != nil {
		return fmt.Errorf("fetching session state: %w", err)
	}
	s.throttle.Mark(stateKey(workflowID, sessionID))

	current := false
	s.conv.Update(func(st *conversation.State) {
		if st.SessionID == sessionID {
			st.WorkflowState = snapshot
			current = true
		}
	})
	if !current {
		s.logger.Debug("discarding session state for inactive session", "session_id", sessionID)
	}

	if s.store != nil {
		sctx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()
		if err := s.store.SaveSessionState(sctx, &store.SessionState{
			WorkflowID: workflowID,
			SessionID:  sessionID,
			State:      snapshot,
			UpdatedAt:  s.now(),
		}); err != nil {
			s.logger.Error("failed to save session state", "error", err, "session_id", sessionID)
		}
	}
	return nil
}

// dropSessionState clears a snapshot that can no longer be trusted, if it
// belongs to sessionID.
func (s *Service) dropSessionState(sessionID string) {
	s.conv.Update(func(st *conversation.State) {
		if st.SessionID == sessionID {
			st.WorkflowState = nil
		}
	})
}

func stateKey(workflowID, sessionID string) string {
	return workflowID + "/" + sessionID
}
