// Package fake is an in-process admin server that runs scripted operations. It backs the
// integration tests and the local demo.
package fake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/opstrack/internal/conventions"
	"github.com/slok/opstrack/internal/log"
)

// Step is one status answer of a scripted task. Each poll reveals the next step.
type Step struct {
	Summary string
	Level   string
	Message string
	Detail  string
}

// Script is how a launched operation behaves.
type Script struct {
	// Reject makes the launch fail with the message.
	Reject string
	Steps  []Step
	// Fail makes the task finish unsuccessfully.
	Fail   bool
	Result string
	// ExpireAfter makes the task unknown (404) after that many polls, 0 disables it.
	ExpireAfter int
}

// Backup is a listed backup.
type Backup struct {
	Name      string
	SizeBytes int64
	CreatedAt time.Time
}

type task struct {
	script Script
	polls  int
}

// ServerConfig is the configuration of the fake server.
type ServerConfig struct {
	// Scripts by launch endpoint. Endpoints without script run DefaultScript.
	Scripts       map[string]Script
	DefaultScript Script
	Backups       []Backup
	// Token, when set, is required as bearer token.
	Token  string
	Logger log.Logger
}

func (c *ServerConfig) defaults() error {
	if c.Scripts == nil {
		c.Scripts = map[string]Script{}
	}
	if len(c.DefaultScript.Steps) == 0 && c.DefaultScript.Reject == "" {
		c.DefaultScript = Script{
			Steps: []Step{
				{Summary: "Running", Level: "info", Message: "Started"},
				{Summary: "Finishing", Level: "success", Message: "Done"},
			},
			Result: "Operation finished",
		}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "fake.Server"})
	return nil
}

// Server is an http.Handler simulating the admin API.
type Server struct {
	scripts       map[string]Script
	defaultScript Script
	token         string
	logger        log.Logger
	mux           *http.ServeMux

	tasks    map[string]*task
	backups  []Backup
	pingDown bool
	launches []string
	mu       sync.Mutex
}

// NewServer returns a new fake admin server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		scripts:       cfg.Scripts,
		defaultScript: cfg.DefaultScript,
		token:         cfg.Token,
		logger:        cfg.Logger,
		tasks:         map[string]*task{},
		backups:       append([]Backup(nil), cfg.Backups...),
		mux:           http.NewServeMux(),
	}
	s.mux.HandleFunc("GET "+conventions.PingEndpoint, s.handlePing)
	s.mux.HandleFunc("GET "+conventions.BackupsEndpoint, s.handleBackups)
	s.mux.HandleFunc("GET /api/task/{id}/status", s.handleStatus)
	s.mux.HandleFunc("POST /", s.handleLaunch)

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "unauthorized"})
		return
	}
	s.mux.ServeHTTP(w, r)
}

// SetPingDown makes the ping endpoint fail.
func (s *Server) SetPingDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingDown = down
}

// Launches returns the launched endpoints in order.
func (s *Server) Launches() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.launches...)
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	down := s.pingDown
	s.mu.Unlock()

	if down {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleBackups(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type backupJSON struct {
		Name      string    `json:"name"`
		SizeBytes int64     `json:"size_bytes"`
		CreatedAt time.Time `json:"created_at"`
	}
	bs := make([]backupJSON, 0, len(s.backups))
	for _, b := range s.backups {
		bs = append(bs, backupJSON{Name: b.Name, SizeBytes: b.SizeBytes, CreatedAt: b.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": bs})
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid JSON payload"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.launches = append(s.launches, r.URL.Path)
	script, ok := s.scripts[r.URL.Path]
	if !ok {
		script = s.defaultScript
	}
	if script.Reject != "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": script.Reject})
		return
	}

	id := ulid.Make().String()
	s.tasks[id] = &task{script: script}
	s.applyEffects(r.URL.Path, payload, script)
	s.logger.Debugf("Launched task %s on %s", id, r.URL.Path)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "task_id": id, "message": "started"})
}

// applyEffects mutates the backups list when the task is launched, unless the script fails.
func (s *Server) applyEffects(endpoint string, payload map[string]any, script Script) {
	if script.Fail {
		return
	}

	switch {
	case strings.HasSuffix(endpoint, "/backup/create"):
		s.backups = append(s.backups, Backup{
			Name:      fmt.Sprintf("backup-%d", len(s.backups)+1),
			SizeBytes: 1 << 20,
			CreatedAt: time.Now().UTC(),
		})
	case strings.HasSuffix(endpoint, "/backup/delete"):
		if name, ok := payload["backup"].(string); ok {
			s.removeBackups(name)
		}
	case strings.HasSuffix(endpoint, "/backup/bulk-delete"):
		names, _ := payload["backups"].([]any)
		for _, n := range names {
			if name, ok := n.(string); ok {
				s.removeBackups(name)
			}
		}
	}
}

func (s *Server) removeBackups(name string) {
	kept := s.backups[:0]
	for _, b := range s.backups {
		if b.Name != name {
			kept = append(kept, b)
		}
	}
	s.backups = kept
}

type logEntryJSON struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	t.polls++

	if t.script.ExpireAfter > 0 && t.polls > t.script.ExpireAfter {
		delete(s.tasks, id)
		http.Error(w, "task expired", http.StatusNotFound)
		return
	}

	shown := t.polls
	if shown > len(t.script.Steps) {
		shown = len(t.script.Steps)
	}
	entries := make([]logEntryJSON, 0, shown)
	summary := ""
	for i, st := range t.script.Steps[:shown] {
		entries = append(entries, logEntryJSON{
			Timestamp: fmt.Sprintf("step-%d", i+1),
			Level:     st.Level,
			Message:   st.Message,
			Detail:    st.Detail,
		})
		summary = st.Summary
	}

	resp := map[string]any{
		"status_summary": summary,
		"success":        nil,
		"is_done":        false,
		"log_entries":    entries,
	}
	if t.polls >= len(t.script.Steps) && t.script.ExpireAfter == 0 {
		resp["is_done"] = true
		resp["success"] = !t.script.Fail
		if t.script.Result != "" {
			resp["result_message"] = t.script.Result
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
