// Package memory is the entry point used by event capture: it owns the
// session, task and checkpoint documents and feeds significant tool events
// into the work log.
package memory

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"time"

	"github.com/roach88/agentlog/internal/clock"
	"github.com/roach88/agentlog/internal/store"
	"github.com/roach88/agentlog/internal/worklog"
)

// Service wraps one Store and one work log Manager. Construct it once at
// process entry and pass it to whatever needs it.
type Service struct {
	store   *store.Store
	worklog *worklog.Manager
	clock   clock.Clock
	logger  *slog.Logger
}

// New returns a Service over st and wl.
func New(st *store.Store, wl *worklog.Manager, c clock.Clock, logger *slog.Logger) *Service {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, worklog: wl, clock: c, logger: logger.With("component", "memory")}
}

// WorkLog returns the work log manager.
func (s *Service) WorkLog() *worklog.Manager {
	return s.worklog
}

func (s *Service) now() string {
	return s.clock.Now().UTC().Format(time.RFC3339Nano)
}

// UpdateSessionState merges data into the session state document and
// stamps session.last_updated and an incremented session.operation_count.
func (s *Service) UpdateSessionState(data store.Document) error {
	doc := s.store.Load(store.SessionState)
	maps.Copy(doc, data)

	session, _ := doc["session"].(map[string]any)
	if session == nil {
		session = map[string]any{}
	}
	session["last_updated"] = s.now()
	session["operation_count"] = operationCount(session) + 1
	doc["session"] = session

	if err := s.store.Save(store.SessionState, doc); err != nil {
		return fmt.Errorf("update session state: %w", err)
	}
	return nil
}

// SessionState returns the session state document.
func (s *Service) SessionState() store.Document {
	return s.store.Load(store.SessionState)
}

// SyncPlannedTasks replaces the planned task list.
func (s *Service) SyncPlannedTasks(tasks []any) error {
	if tasks == nil {
		tasks = []any{}
	}
	doc := store.Document{
		"last_synced": s.now(),
		"tasks":       tasks,
	}
	if err := s.store.Save(store.PlannedTasks, doc); err != nil {
		return fmt.Errorf("sync planned tasks: %w", err)
	}
	return nil
}

// PlannedTasks returns the planned tasks document.
func (s *Service) PlannedTasks() store.Document {
	return s.store.Load(store.PlannedTasks)
}

// CreateCheckpoint writes data as the recovery checkpoint, adding
// checkpoint.timestamp and checkpoint.status (data["status"], or
// "in_progress").
func (s *Service) CreateCheckpoint(data store.Document) error {
	doc := store.Document{}
	maps.Copy(doc, data)

	status, _ := doc["status"].(string)
	if status == "" {
		status = "in_progress"
	}
	doc["checkpoint"] = map[string]any{
		"timestamp": s.now(),
		"status":    status,
	}
	if err := s.store.Save(store.RecoveryCheckpoint, doc); err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	return nil
}

// RecoveryCheckpoint returns the recovery checkpoint document.
func (s *Service) RecoveryCheckpoint() store.Document {
	return s.store.Load(store.RecoveryCheckpoint)
}

// ToolEvent is a captured tool invocation.
type ToolEvent struct {
	// Timestamp and LocalTime carry the raw record's capture time so the
	// work log entry fingerprints the same as the record. Empty means now.
	Timestamp string
	LocalTime string

	Operation string
	Prompt    string
	SessionID string
	Project   string
	Cwd       string
	Details   map[string]any
}

// OnToolUse records a tool event in the work log if it is significant.
// todo_write events also replace the planned task list when the details
// carry a "todos" list. Failures are logged, never returned: a capture hook
// must not fail because the memory layer did.
func (s *Service) OnToolUse(ev ToolEvent) {
	if ev.Operation == "todo_write" {
		if todos, ok := ev.Details["todos"].([]any); ok {
			if err := s.SyncPlannedTasks(todos); err != nil {
				s.logger.Error("sync planned tasks failed", "error", err)
			}
		}
	}
	s.appendWorkLog(ev)
}

// OnUserPrompt records a user prompt in the work log.
func (s *Service) OnUserPrompt(ev ToolEvent) {
	ev.Operation = "user_prompt"
	s.appendWorkLog(ev)
}

func (s *Service) appendWorkLog(ev ToolEvent) {
	_, err := s.worklog.Append(worklog.Entry{
		Timestamp:   ev.Timestamp,
		LocalTime:   ev.LocalTime,
		Operation:   ev.Operation,
		Description: ev.Prompt,
		SessionID:   ev.SessionID,
		Project:     ev.Project,
		Cwd:         ev.Cwd,
		Details:     ev.Details,
	})
	if err != nil {
		s.logger.Error("work log append failed", "operation", ev.Operation, "error", err)
	}
}

// FileStatus describes one primary document on disk.
type FileStatus struct {
	Name     store.Name `json:"name"`
	Path     string     `json:"path"`
	Exists   bool       `json:"exists"`
	Size     int64      `json:"size"`
	Critical bool       `json:"critical"`
	Backups  int        `json:"backups"`
	Corrupt  int        `json:"corrupt"`
}

// Status summarizes the memory directory.
type Status struct {
	Dir        string       `json:"dir"`
	Files      []FileStatus `json:"files"`
	Archives   []string     `json:"archives"`
	WorkLogLen int          `json:"work_log_entries"`
}

// Status reports which documents exist along with their backup,
// quarantine and archive counts.
func (s *Service) Status() (Status, error) {
	st := Status{Dir: s.store.Dir()}
	for _, name := range store.Names() {
		fs := FileStatus{Name: name, Path: s.store.Path(name), Critical: name.Critical()}
		if info, err := os.Stat(fs.Path); err == nil {
			fs.Exists = true
			fs.Size = info.Size()
		}
		backups, err := s.store.Backups(name)
		if err != nil {
			return st, fmt.Errorf("status: %w", err)
		}
		fs.Backups = len(backups)
		quarantined, err := s.store.Quarantined(string(name))
		if err != nil {
			return st, fmt.Errorf("status: %w", err)
		}
		fs.Corrupt = len(quarantined)
		st.Files = append(st.Files, fs)
	}

	archives, err := s.store.Archives()
	if err != nil {
		return st, fmt.Errorf("status: %w", err)
	}
	st.Archives = archives
	st.WorkLogLen = len(s.worklog.Get())
	return st, nil
}

func operationCount(session map[string]any) int {
	switch n := session["operation_count"].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
