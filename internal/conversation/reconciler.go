// ABOUTME: Run reconciler: the state machine that folds stream events into the open agent message
// ABOUTME: Handles content diffing, terminal overwrite, failure marking, and failed-pair rollback

package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/coven-playground/internal/model"
	"github.com/2389/coven-playground/internal/stream"
)

// ErrRunFailed is wrapped by errors describing a server-signaled run failure.
var ErrRunFailed = errors.New("run failed")

// completedEncodeFailure replaces structured terminal content that cannot be encoded.
const completedEncodeFailure = "Error parsing response"

// Phase is the reconciler state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingFirstEvent
	PhaseAccumulating
	PhaseFinalized
	PhaseFailed
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingFirstEvent:
		return "awaiting_first_event"
	case PhaseAccumulating:
		return "accumulating"
	case PhaseFinalized:
		return "finalized"
	case PhaseFailed:
		return "failed"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the run has ended.
func (p Phase) Terminal() bool {
	return p == PhaseFinalized || p == PhaseFailed || p == PhaseAborted
}

// Reconciler owns one run. Create a new one per submission.
type Reconciler struct {
	target model.Target
	corr   *Correlator
	logger *slog.Logger
	now    func() time.Time

	phase Phase
	title string
	user  *model.Message
	agent *model.Message

	// cursor is the last content value applied from the stream.
	cursor string

	runID           string
	submitSessionID string
	sessionID       string
	// registered is the session this run added to the session list.
	registered string
	errMsg     string
	finished   bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithCorrelator sets the session correlator.
func WithCorrelator(c *Correlator) Option {
	return func(r *Reconciler) { r.corr = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithClock sets the time source used for message and session timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a reconciler for one run against target.
func NewReconciler(target model.Target, opts ...Option) *Reconciler {
	r := &Reconciler{
		target: target,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "reconciler", "target", target.String())
	if r.corr == nil {
		r.corr = NewCorrelator(nil, r.logger)
	}
	return r
}

// Phase returns the current state.
func (r *Reconciler) Phase() Phase { return r.phase }

// SessionID returns the session correlated with this run, if known.
func (r *Reconciler) SessionID() string { return r.sessionID }

// RunID returns the server-assigned run id, if reported.
func (r *Reconciler) RunID() string { return r.runID }

// Err returns the failure message for failed or aborted runs.
func (r *Reconciler) Err() string { return r.errMsg }

// Begin submits input: it drops a trailing failed exchange, appends the user
// message and an empty agent placeholder, and starts streaming.
func (r *Reconciler) Begin(st *State, input string) []Effect {
	if r.phase != PhaseIdle {
		r.logger.Warn("begin called twice for the same run", "phase", r.phase)
		return nil
	}

	dropFailedTail(st)

	now := r.now().Unix()
	r.title = input
	r.cursor = ""
	r.submitSessionID = st.SessionID
	r.sessionID = st.SessionID
	r.user = &model.Message{Role: model.RoleUser, Content: input, CreatedAt: now}
	r.agent = &model.Message{Role: model.RoleAgent, CreatedAt: now + 1}
	st.Messages = append(st.Messages, r.user, r.agent)
	st.Streaming = true
	st.StreamErr = ""

	var effects []Effect
	if r.target.IsWorkflow() && st.SessionID == "" {
		id := r.corr.Synthesize(st)
		r.sessionID = id
		st.SessionID = id
		effects = append(effects, Effect{Kind: EffectSessionChanged, SessionID: id})

		sess := model.Session{SessionID: id, Title: input, CreatedAt: now}
		if r.corr.RegisterIfAbsent(st, sess) {
			r.registered = id
			effects = append(effects, Effect{Kind: EffectSessionRegistered, Session: sess, SessionID: id})
			for _, m := range st.Messages {
				if m.SessionID == "" {
					m.SessionID = id
				}
			}
		}
	}
	r.tagPair(r.sessionID)

	r.phase = PhaseAwaitingFirstEvent
	r.logger.Debug("run submitted", "session_id", r.sessionID)
	return effects
}

// dropFailedTail removes a trailing (user, failed agent) pair left by a failed run.
func dropFailedTail(st *State) {
	n := len(st.Messages)
	if n < 2 {
		return
	}
	last, prev := st.Messages[n-1], st.Messages[n-2]
	if last.Role == model.RoleAgent && last.StreamingError && prev.Role == model.RoleUser {
		st.Messages = st.Messages[:n-2:n-2]
	}
}

// Apply folds one decoded event into the state.
func (r *Reconciler) Apply(st *State, ev stream.Event) []Effect {
	if r.phase == PhaseIdle || r.phase.Terminal() {
		r.logger.Debug("ignoring event outside an active run", "kind", ev.Kind, "phase", r.phase)
		return nil
	}

	if len(ev.Skipped) > 0 {
		r.logger.Debug("dropped fields of unexpected type", "event", eventName(ev), "fields", ev.Skipped)
	}

	switch ev.Kind {
	case stream.KindRunStarted, stream.KindReasoningStarted:
		return r.onStart(st, ev.Payload)
	case stream.KindRunResponse:
		r.onResponse(ev.Payload)
	case stream.KindRunCompleted:
		r.onCompleted(ev.Payload)
	case stream.KindRunError:
		return r.fail(st, errorText(ev.Payload), PhaseFailed)
	case stream.KindText:
		r.onText(ev)
	default:
		r.logger.Debug("ignoring unknown event", "event", eventName(ev))
	}
	return nil
}

func (r *Reconciler) onStart(st *State, p *stream.Payload) []Effect {
	r.phase = PhaseAccumulating
	r.noteRunID(p.RunID)

	id := p.SessionID
	if id == "" {
		return nil
	}

	var effects []Effect
	r.sessionID = id
	r.tagPair(id)
	if st.SessionID != id {
		st.SessionID = id
		effects = append(effects, Effect{Kind: EffectSessionChanged, SessionID: id})
	}

	// Continuing the session that was active at submit registers nothing.
	if id == r.submitSessionID {
		return effects
	}

	// The server's id wins over one synthesized at submit.
	if r.registered != "" && r.registered != id {
		if r.corr.Evict(st, r.registered) {
			effects = append(effects, Effect{Kind: EffectSessionEvicted, SessionID: r.registered})
		}
		r.registered = ""
	}

	created := r.now().Unix()
	if p.CreatedAt != nil {
		created = *p.CreatedAt
	}
	sess := model.Session{SessionID: id, Title: r.title, CreatedAt: created}
	if r.corr.RegisterIfAbsent(st, sess) {
		r.registered = id
		effects = append(effects, Effect{Kind: EffectSessionRegistered, Session: sess, SessionID: id})
	}
	return effects
}

func (r *Reconciler) onResponse(p *stream.Payload) {
	r.phase = PhaseAccumulating
	r.noteRunID(p.RunID)
	if r.sessionID == "" && p.SessionID != "" {
		r.sessionID = p.SessionID
		r.tagPair(p.SessionID)
	}

	msg := r.agent
	if text, ok := p.Text(); ok {
		msg.Content += unseenSuffix(text, r.cursor)
		r.cursor = text
	} else if p.HasContent() {
		block := model.JSONMarkdown(p.Content)
		msg.Content += block
		r.cursor = block
	}

	if len(p.Tools) > 0 {
		msg.ToolCalls = append([]model.ToolCall(nil), p.Tools...)
	}
	if p.ExtraData != nil {
		msg.Extra = msg.Extra.Merge(p.ExtraData)
	}
	if p.CreatedAt != nil {
		msg.CreatedAt = *p.CreatedAt
	}
	if len(p.Images) > 0 {
		msg.Images = p.Images
	}
	if len(p.Videos) > 0 {
		msg.Videos = p.Videos
	}
	if len(p.Audio) > 0 {
		msg.Audio = p.Audio
	}
	if p.ResponseAudio != nil {
		mergeResponseAudio(msg, p.ResponseAudio)
	}
}

// unseenSuffix returns the part of content not yet applied. Upstream sometimes
// resends the full content so far instead of a delta.
func unseenSuffix(content, last string) string {
	if last == "" {
		return content
	}
	if strings.HasPrefix(content, last) {
		return content[len(last):]
	}
	return strings.Replace(content, last, "", 1)
}

func mergeResponseAudio(msg *model.Message, in *model.ResponseAudio) {
	if msg.ResponseAudio == nil {
		msg.ResponseAudio = &model.ResponseAudio{}
	}
	out := msg.ResponseAudio
	out.Transcript += in.Transcript
	if in.ID != "" {
		out.ID = in.ID
	}
	if in.Content != "" {
		out.Content = in.Content
	}
	if in.ExpiresAt != 0 {
		out.ExpiresAt = in.ExpiresAt
	}
}

func (r *Reconciler) onCompleted(p *stream.Payload) {
	r.noteRunID(p.RunID)
	if r.sessionID == "" && p.SessionID != "" {
		r.sessionID = p.SessionID
		r.tagPair(p.SessionID)
	}

	msg := r.agent
	if p.HasContent() {
		if text, ok := p.Text(); ok {
			msg.Content = text
		} else {
			var buf bytes.Buffer
			if err := json.Compact(&buf, p.Content); err != nil {
				msg.Content = completedEncodeFailure
			} else {
				msg.Content = buf.String()
			}
		}
	}
	r.cursor = msg.Content

	if len(p.Tools) > 0 {
		msg.ToolCalls = append([]model.ToolCall(nil), p.Tools...)
	}
	if p.Images != nil {
		msg.Images = p.Images
	}
	if p.Videos != nil {
		msg.Videos = p.Videos
	}
	if p.Audio != nil {
		msg.Audio = p.Audio
	}
	if p.ResponseAudio != nil {
		ra := *p.ResponseAudio
		msg.ResponseAudio = &ra
	}
	if p.CreatedAt != nil {
		msg.CreatedAt = *p.CreatedAt
	}
	if p.ExtraData != nil {
		msg.Extra = msg.Extra.Merge(p.ExtraData)
	}

	r.phase = PhaseFinalized
	r.logger.Debug("run completed", "run_id", r.runID, "session_id", r.sessionID)
}

// onText appends a record that failed to decode as literal content.
func (r *Reconciler) onText(ev stream.Event) {
	if ev.Err != nil {
		r.logger.Debug("record did not decode, appending as text", "error", ev.Err)
	}
	r.phase = PhaseAccumulating
	r.agent.Content += ev.Text
}

// Abort handles a transport or decode failure at any point of the run. A run
// that already finished is left untouched.
func (r *Reconciler) Abort(st *State, err error) []Effect {
	if r.phase == PhaseIdle || r.phase.Terminal() {
		r.logger.Debug("ignoring abort outside an active run", "error", err, "phase", r.phase)
		return nil
	}
	msg := "stream aborted"
	if err != nil {
		msg = err.Error()
	}
	return r.fail(st, msg, PhaseAborted)
}

// fail marks the open message as failed, evicts the session this run
// registered and makes the session active at submit current again.
func (r *Reconciler) fail(st *State, msg string, phase Phase) []Effect {
	r.agent.StreamingError = true
	r.errMsg = msg
	st.StreamErr = msg
	effects := []Effect{{Kind: EffectStreamError, Err: msg}}

	if r.registered != "" {
		if r.corr.Evict(st, r.registered) {
			effects = append(effects, Effect{Kind: EffectSessionEvicted, SessionID: r.registered})
		}
		if st.SessionID == r.registered {
			st.SessionID = r.submitSessionID
			effects = append(effects, Effect{Kind: EffectSessionChanged, SessionID: r.submitSessionID})
		}
		r.registered = ""
	}

	r.phase = phase
	r.logger.Debug("run failed", "phase", phase, "error", msg)
	return effects
}

// Finish performs terminal housekeeping. It is safe to call more than once.
// A stream that closed without a terminal event is treated as finalized.
func (r *Reconciler) Finish(st *State) []Effect {
	if r.finished {
		return nil
	}
	r.finished = true
	st.Streaming = false

	if r.phase == PhaseAwaitingFirstEvent || r.phase == PhaseAccumulating {
		r.logger.Debug("stream closed without a terminal event")
		r.phase = PhaseFinalized
	}

	if r.target.IsWorkflow() && r.sessionID != "" {
		return []Effect{{Kind: EffectFetchSessionState, WorkflowID: r.target.ID, SessionID: r.sessionID}}
	}
	st.WorkflowState = nil
	return []Effect{{Kind: EffectClearSessionState}}
}

func (r *Reconciler) noteRunID(id string) {
	if id == "" || r.runID != "" {
		return
	}
	r.runID = id
	r.user.RunID = id
	r.agent.RunID = id
}

func (r *Reconciler) tagPair(sessionID string) {
	if sessionID == "" || r.user == nil {
		return
	}
	r.user.SessionID = sessionID
	r.agent.SessionID = sessionID
}

// errorText extracts the failure message of a RunError payload.
func errorText(p *stream.Payload) string {
	if text, ok := p.Text(); ok && text != "" {
		return text
	}
	if p.HasContent() {
		var buf bytes.Buffer
		if err := json.Compact(&buf, p.Content); err == nil {
			return buf.String()
		}
	}
	return ErrRunFailed.Error()
}

func eventName(ev stream.Event) string {
	if ev.Payload != nil {
		return ev.Payload.Event
	}
	return string(ev.Kind)
}
