// ABOUTME: HTTP handlers of the fake playground backend
// ABOUTME: Replies echo the input, resending the full content so far on each record like real backends do

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	echoAgent    = "echo-agent"
	echoTeam     = "echo-team"
	echoWorkflow = "echo-workflow"
)

type storedRun struct {
	Message  map[string]any `json:"message"`
	Response map[string]any `json:"response"`
}

type storedSession struct {
	ID        string
	Target    string // collection/id
	Title     string
	CreatedAt int64
	Runs      []storedRun
	State     map[string]any
}

type server struct {
	delay  time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*storedSession
	order    []string
	docs     []map[string]any
}

func newServer(delay time.Duration, logger *slog.Logger) *server {
	return &server{
		delay:    delay,
		logger:   logger,
		sessions: make(map[string]*storedSession),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/playground/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"playground": "available"})
	})
	mux.HandleFunc("GET /v1/playground/agents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{
			"agent_id": echoAgent,
			"name":     "Echo Agent",
			"model":    map[string]any{"name": "echo", "model": "echo-1", "provider": "fake"},
			"storage":  true,
		}})
	})
	mux.HandleFunc("GET /v1/playground/teams", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"team_id": echoTeam, "name": "Echo Team", "storage": false}})
	})
	mux.HandleFunc("GET /v1/playground/workflows", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"workflow_id": echoWorkflow, "name": "Echo Workflow", "storage": true}})
	})
	mux.HandleFunc("GET /v1/playground/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != echoWorkflow {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Workflow not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"workflow_id": echoWorkflow,
			"name":        "Echo Workflow",
			"parameters":  map[string]any{"user_message": map[string]any{"type": "string"}},
			"storage":     true,
		})
	})
	mux.HandleFunc("POST /v1/playground/{collection}/{id}/runs", s.handleRun)
	mux.HandleFunc("GET /v1/playground/{collection}/{id}/sessions", s.handleSessions)
	mux.HandleFunc("GET /v1/playground/{collection}/{id}/sessions/{sid}", s.handleSession)
	mux.HandleFunc("DELETE /v1/playground/{collection}/{id}/sessions/{sid}", s.handleDeleteSession)
	mux.HandleFunc("POST /v1/playground/{collection}/{id}/sessions/{sid}/rename", s.handleRename)
	mux.HandleFunc("GET /v1/playground/{collection}/{id}/sessions/{sid}/state", s.handleState)
	mux.HandleFunc("POST /v1/playground/sessions/branch", s.handleBranch)
	mux.HandleFunc("GET /documents", s.handleDocuments)
	mux.HandleFunc("POST /documents", s.handleCreateDocument)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func targetKey(r *http.Request) string {
	return r.PathValue("collection") + "/" + r.PathValue("id")
}

func known(r *http.Request) bool {
	switch targetKey(r) {
	case "agents/" + echoAgent, "teams/" + echoTeam, "workflows/" + echoWorkflow:
		return true
	}
	return false
}

// runInput reads the message and session id from a form or JSON run request.
func runInput(r *http.Request) (message, sessionID string, err error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Input struct {
				UserMessage string `json:"user_message"`
			} `json:"input"`
			SessionID *string `json:"session_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", "", err
		}
		if body.SessionID != nil {
			sessionID = *body.SessionID
		}
		return body.Input.UserMessage, sessionID, nil
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		return "", "", err
	}
	return r.FormValue("message"), r.FormValue("session_id"), nil
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !known(r) {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Agent not found"})
		return
	}
	message, sessionID, err := runInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	runID := uuid.New().String()
	now := time.Now().Unix()

	s.logger.Info("run", "target", targetKey(r), "session_id", sessionID, "message", message)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	send := func(record map[string]any) bool {
		record["session_id"] = sessionID
		record["run_id"] = runID
		record["created_at"] = now
		data, _ := json.Marshal(record)
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		select {
		case <-r.Context().Done():
			return false
		case <-time.After(s.delay):
			return true
		}
	}

	if !send(map[string]any{"event": "RunStarted"}) {
		return
	}

	if strings.Contains(strings.ToLower(message), "fail") {
		send(map[string]any{"event": "RunError", "content": "the echo backend was asked to fail"})
		return
	}

	reply := echoReply(message)
	words := strings.SplitAfter(reply, " ")
	var sofar strings.Builder
	for _, word := range words {
		sofar.WriteString(word)
		// Resend the full content so far, as real backends sometimes do.
		if !send(map[string]any{"event": "RunResponse", "content": sofar.String()}) {
			return
		}
	}
	// Stored before completion so follow-up fetches see the run.
	s.record(targetKey(r), sessionID, runID, message, reply, now)
	send(map[string]any{"event": "RunCompleted", "content": reply})
}

func echoReply(input string) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "markdown") || strings.Contains(lower, "bullet") || strings.Contains(lower, "list") {
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n\n> This is a blockquote.\n"
	}
	return fmt.Sprintf("Echo: **%s**\n\nI received your message and am responding with some *formatted* text.", input)
}

func (s *server) record(target, sessionID, runID, message, reply string, created int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &storedSession{ID: sessionID, Target: target, Title: message, CreatedAt: created, State: map[string]any{}}
		s.sessions[sessionID] = sess
		s.order = append(s.order, sessionID)
	}
	sess.Runs = append(sess.Runs, storedRun{
		Message:  map[string]any{"content": message, "created_at": created},
		Response: map[string]any{"content": reply, "run_id": runID, "created_at": created},
	})
	sess.State["turns"] = len(sess.Runs)
	sess.State["last_message"] = message
}

func (s *server) lookup(r *http.Request) (*storedSession, bool) {
	sess, ok := s.sessions[r.PathValue("sid")]
	if !ok || sess.Target != targetKey(r) {
		return nil, false
	}
	return sess, true
}

func (s *server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if targetKey(r) == "teams/"+echoTeam {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "storage disabled"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []map[string]any{}
	for i := len(s.order) - 1; i >= 0; i-- {
		sess := s.sessions[s.order[i]]
		if sess == nil || sess.Target != targetKey(r) {
			continue
		}
		out = append(out, map[string]any{"session_id": sess.ID, "title": sess.Title, "created_at": sess.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "session not found"})
		return
	}
	if r.PathValue("collection") == "workflows" {
		var runs []map[string]any
		for _, run := range sess.Runs {
			runs = append(runs,
				map[string]any{"event": "UserMessage", "content": run.Message["content"], "created_at": run.Message["created_at"]},
				map[string]any{"event": "RunResponse", "content": run.Response["content"], "run_id": run.Response["run_id"], "created_at": run.Response["created_at"]},
			)
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": sess.ID, "runs": runs})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"memory":     map[string]any{"runs": sess.Runs},
	})
}

func (s *server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(r); !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "session not found"})
		return
	}
	delete(s.sessions, r.PathValue("sid"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRename(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookup(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "session not found"})
		return
	}
	sess.Title = body.Name
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sess.ID, "title": sess.Title})
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookup(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, sess.State)
}

func (s *server) handleBranch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SourceSessionID string `json:"source_session_id"`
		RunID           string `json:"run_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sessions[body.SourceSessionID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "session not found"})
		return
	}

	branch := &storedSession{
		ID:        uuid.New().String(),
		Target:    src.Target,
		Title:     src.Title + " (branch)",
		CreatedAt: time.Now().Unix(),
		State:     map[string]any{},
	}
	for _, run := range src.Runs {
		branch.Runs = append(branch.Runs, run)
		if run.Response["run_id"] == body.RunID {
			break
		}
	}
	s.sessions[branch.ID] = branch
	s.order = append(s.order, branch.ID)
	writeJSON(w, http.StatusOK, map[string]any{"session_id": branch.ID})
}

func (s *server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, append([]map[string]any{}, s.docs...))
}

func (s *server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}
	if _, ok := doc["id"]; !ok {
		doc["id"] = uuid.New().String()
	}

	s.mu.Lock()
	s.docs = append(s.docs, doc)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, doc)
}
