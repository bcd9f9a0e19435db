package memory

import (
	"cmp"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/agentlog/internal/eventlog"
	"github.com/roach88/agentlog/internal/faults"
	"github.com/roach88/agentlog/internal/recovery"
	"github.com/roach88/agentlog/internal/store"
	"github.com/roach88/agentlog/internal/worklog"
)

// Lookback windows (days) and result limits of the context queries.
const (
	DefaultContextDays    = 7
	DefaultContextEntries = 100
	DefaultSummaryDays    = 30
	DefaultProjectDays    = 90

	recentLimit         = 20
	projectWorkLogLimit = 30
	mostActiveLimit     = 15
	recentActivityDays  = 7
	historyPromptLimit  = 100
)

// LogEntry is a raw log record along with the date of the file it was read
// from.
type LogEntry struct {
	eventlog.Record
	FileDate string `json:"file_date"`
}

// WorkLogView is a slice of the work log.
type WorkLogView struct {
	TotalEntries int              `json:"total_entries"`
	Entries      []map[string]any `json:"entries"`
}

// HookLogs is the tail of the raw log matching a query.
type HookLogs struct {
	TotalEntries  int        `json:"total_entries"`
	RecentEntries []LogEntry `json:"recent_entries"`
}

// ContextOptions scopes Context.
type ContextOptions struct {
	// Dirs hold the agent-activity-*.log files to read.
	Dirs []string
	// Project filters work log and raw entries; empty keeps everything.
	Project    string
	DaysBack   int
	MaxEntries int
}

// Context is the combined view of the memory documents and recent raw
// activity.
type Context struct {
	GeneratedAt        string         `json:"generated_at"`
	ProjectFilter      string         `json:"project_filter,omitempty"`
	DaysBack           int            `json:"days_back"`
	SessionState       store.Document `json:"session_state"`
	PlannedTasks       store.Document `json:"planned_tasks"`
	RecoveryCheckpoint store.Document `json:"recovery_checkpoint"`
	WorkLog            WorkLogView    `json:"work_log"`
	HookLogs           HookLogs       `json:"hook_logs"`
}

// Context returns every memory document plus the newest MaxEntries raw
// records from the last DaysBack days, both filtered to Project.
func (s *Service) Context(opts ContextOptions) (Context, error) {
	if opts.DaysBack <= 0 {
		opts.DaysBack = DefaultContextDays
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultContextEntries
	}

	logs, err := s.readLogs(opts.Dirs, opts.DaysBack)
	if err != nil {
		return Context{}, fmt.Errorf("context: %w", err)
	}
	logs = filterProject(logs, opts.Project)
	entries := s.worklog.ForProject(opts.Project)

	return Context{
		GeneratedAt:        s.now(),
		ProjectFilter:      opts.Project,
		DaysBack:           opts.DaysBack,
		SessionState:       s.SessionState(),
		PlannedTasks:       s.PlannedTasks(),
		RecoveryCheckpoint: s.RecoveryCheckpoint(),
		WorkLog:            workLogView(entries, len(entries)),
		HookLogs: HookLogs{
			TotalEntries:  len(logs),
			RecentEntries: lastN(logs, opts.MaxEntries),
		},
	}, nil
}

// ActivitySummary counts a project's raw activity.
type ActivitySummary struct {
	Project         string         `json:"project"`
	DaysBack        int            `json:"days_back"`
	TotalEntries    int            `json:"total_entries"`
	OperationCounts map[string]int `json:"operation_counts"`
	FilesTouched    []string       `json:"files_touched"`
	RecentEntries   []LogEntry     `json:"recent_entries"`
}

// ActivitySummary reports operation counts, the files named in event
// details and the newest entries for project over the last daysBack days.
func (s *Service) ActivitySummary(dirs []string, project string, daysBack int) (ActivitySummary, error) {
	if daysBack <= 0 {
		daysBack = DefaultSummaryDays
	}
	logs, err := s.readLogs(dirs, daysBack)
	if err != nil {
		return ActivitySummary{}, fmt.Errorf("activity summary: %w", err)
	}
	logs = filterProject(logs, project)

	sum := ActivitySummary{
		Project:         project,
		DaysBack:        daysBack,
		TotalEntries:    len(logs),
		OperationCounts: operationCounts(logs),
		FilesTouched:    []string{},
		RecentEntries:   lastN(logs, recentLimit),
	}
	seen := make(map[string]bool)
	for _, e := range logs {
		for _, p := range detailPaths(e.Details) {
			if !seen[p] {
				seen[p] = true
				sum.FilesTouched = append(sum.FilesTouched, p)
			}
		}
	}
	slices.Sort(sum.FilesTouched)
	return sum, nil
}

// HistoryOptions scopes FileHistory.
type HistoryOptions struct {
	Dirs    []string
	Project string
	// Pattern is a shell glob matched against file base names.
	Pattern  string
	DaysBack int
}

// FileOperation is one event that touched a file.
type FileOperation struct {
	Timestamp string `json:"timestamp"`
	LocalTime string `json:"local_time"`
	Operation string `json:"operation"`
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
}

// FileActivity ranks a file by how many events touched it.
type FileActivity struct {
	File           string `json:"file"`
	OperationCount int    `json:"operation_count"`
}

// FileHistorySummary is FileHistory without the per-file operations.
type FileHistorySummary struct {
	TotalFilesTouched int            `json:"total_files_touched"`
	TotalOperations   int            `json:"total_operations"`
	MostActiveFiles   []FileActivity `json:"most_active_files"`
}

// FileHistory lists the operations recorded against each file.
type FileHistory struct {
	Project  string `json:"project"`
	DaysBack int    `json:"days_back"`
	FileHistorySummary
	Files map[string][]FileOperation `json:"file_operations"`
}

var promptPath = regexp.MustCompile(`/\S+\.\w+`)

// FileHistory collects, per file, the events that touched it. Files come
// from details.file_path, details.target_file and details.path; write,
// edit and read events without any fall back to absolute paths in the
// prompt.
func (s *Service) FileHistory(opts HistoryOptions) (FileHistory, error) {
	if opts.DaysBack <= 0 {
		opts.DaysBack = DefaultProjectDays
	}
	if _, err := filepath.Match(opts.Pattern, ""); err != nil {
		return FileHistory{}, faults.Validation("file history", fmt.Errorf("pattern %q: %w", opts.Pattern, err))
	}
	logs, err := s.readLogs(opts.Dirs, opts.DaysBack)
	if err != nil {
		return FileHistory{}, fmt.Errorf("file history: %w", err)
	}
	return fileHistory(filterProject(logs, opts.Project), opts), nil
}

func fileHistory(logs []LogEntry, opts HistoryOptions) FileHistory {
	h := FileHistory{
		Project:  opts.Project,
		DaysBack: opts.DaysBack,
		Files:    make(map[string][]FileOperation),
	}
	for _, e := range logs {
		for _, p := range touchedFiles(e) {
			if opts.Pattern != "" {
				if ok, _ := filepath.Match(opts.Pattern, filepath.Base(p)); !ok {
					continue
				}
			}
			h.Files[p] = append(h.Files[p], FileOperation{
				Timestamp: e.Timestamp,
				LocalTime: e.Time,
				Operation: e.Operation,
				Prompt:    clip(e.Prompt, historyPromptLimit),
				SessionID: e.SessionID,
			})
			h.TotalOperations++
		}
	}

	h.TotalFilesTouched = len(h.Files)
	h.MostActiveFiles = make([]FileActivity, 0, len(h.Files))
	for f, ops := range h.Files {
		h.MostActiveFiles = append(h.MostActiveFiles, FileActivity{File: f, OperationCount: len(ops)})
	}
	slices.SortFunc(h.MostActiveFiles, func(a, b FileActivity) int {
		if c := cmp.Compare(b.OperationCount, a.OperationCount); c != 0 {
			return c
		}
		return strings.Compare(a.File, b.File)
	})
	if len(h.MostActiveFiles) > mostActiveLimit {
		h.MostActiveFiles = h.MostActiveFiles[:mostActiveLimit]
	}
	return h
}

// ProjectOptions scopes ProjectContext.
type ProjectOptions struct {
	Dirs []string
	// Path is the project directory; its base name is the project filter.
	Path     string
	DaysBack int
	// Keywords are matched case-insensitively against prompts.
	Keywords        []string
	SkipFileHistory bool
}

// ProjectHooks describes a project's significant raw activity.
type ProjectHooks struct {
	TotalEntries       int            `json:"total_entries"`
	SignificantEntries int            `json:"significant_entries"`
	DatesWithActivity  []string       `json:"dates_with_activity"`
	EntriesByDate      map[string]int `json:"entries_by_date_count"`
	RecentEntries      []LogEntry     `json:"recent_entries"`
}

// KeywordMatches holds the significant entries whose prompt mentions any
// of the keywords.
type KeywordMatches struct {
	Keywords   []string   `json:"keywords"`
	MatchCount int        `json:"match_count"`
	Matches    []LogEntry `json:"matches"`
}

// DateRange spans the log dates with activity.
type DateRange struct {
	From             string `json:"from,omitempty"`
	To               string `json:"to,omitempty"`
	DaysWithActivity int    `json:"days_with_activity"`
}

// ProjectSummary condenses a ProjectContext.
type ProjectSummary struct {
	DateRange               DateRange      `json:"date_range"`
	TotalSignificantEntries int            `json:"total_significant_entries"`
	OperationCounts         map[string]int `json:"operation_counts"`
	UniqueSessions          int            `json:"unique_sessions"`
	HasRecentActivity       bool           `json:"has_recent_activity"`
}

// ProjectContext is the long-range view of a single project.
type ProjectContext struct {
	GeneratedAt        string              `json:"generated_at"`
	ProjectPath        string              `json:"project_path"`
	ProjectName        string              `json:"project_name"`
	DaysBack           int                 `json:"days_back"`
	Hooks              ProjectHooks        `json:"project_hooks"`
	SessionState       store.Document      `json:"session_state"`
	PlannedTasks       store.Document      `json:"planned_tasks"`
	RecoveryCheckpoint store.Document      `json:"recovery_checkpoint"`
	WorkLog            WorkLogView         `json:"work_log"`
	FileHistory        *FileHistorySummary `json:"file_history,omitempty"`
	KeywordMatches     *KeywordMatches     `json:"keyword_matches,omitempty"`
	Summary            ProjectSummary      `json:"summary"`
}

// ProjectContext gathers a project's significant activity grouped by day,
// its work log entries, the files it touched and any keyword hits, over the
// last DaysBack days.
func (s *Service) ProjectContext(opts ProjectOptions) (ProjectContext, error) {
	if opts.DaysBack <= 0 {
		opts.DaysBack = DefaultProjectDays
	}
	if opts.Path == "" {
		return ProjectContext{}, faults.Validation("project context", errors.New("project path is required"))
	}
	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return ProjectContext{}, fmt.Errorf("project context: %w", err)
	}
	name := filepath.Base(path)

	logs, err := s.readLogs(opts.Dirs, opts.DaysBack)
	if err != nil {
		return ProjectContext{}, fmt.Errorf("project context: %w", err)
	}
	logs = filterProject(logs, name)

	var significant []LogEntry
	for _, e := range logs {
		if worklog.IsSignificant(e.Operation) {
			significant = append(significant, e)
		}
	}

	byDate := make(map[string]int)
	sessions := make(map[string]bool)
	for _, e := range significant {
		byDate[e.FileDate]++
		if e.SessionID != "" {
			sessions[e.SessionID] = true
		}
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	entries := s.worklog.ForProject(name)
	pc := ProjectContext{
		GeneratedAt: s.now(),
		ProjectPath: path,
		ProjectName: name,
		DaysBack:    opts.DaysBack,
		Hooks: ProjectHooks{
			TotalEntries:       len(logs),
			SignificantEntries: len(significant),
			DatesWithActivity:  dates,
			EntriesByDate:      byDate,
			RecentEntries:      lastN(significant, recentLimit),
		},
		SessionState:       s.SessionState(),
		PlannedTasks:       s.PlannedTasks(),
		RecoveryCheckpoint: s.RecoveryCheckpoint(),
		WorkLog:            workLogView(entries, projectWorkLogLimit),
		Summary: ProjectSummary{
			DateRange:               DateRange{DaysWithActivity: len(dates)},
			TotalSignificantEntries: len(significant),
			OperationCounts:         operationCounts(significant),
			UniqueSessions:          len(sessions),
		},
	}
	if len(dates) > 0 {
		pc.Summary.DateRange.From = dates[0]
		pc.Summary.DateRange.To = dates[len(dates)-1]
		recent := eventlog.WindowStart(s.clock.Now(), recentActivityDays)
		pc.Summary.HasRecentActivity = dates[len(dates)-1] >= recent
	}

	if !opts.SkipFileHistory {
		h := fileHistory(logs, HistoryOptions{Project: name, DaysBack: opts.DaysBack})
		pc.FileHistory = &h.FileHistorySummary
	}
	if len(opts.Keywords) > 0 {
		pc.KeywordMatches = keywordMatches(significant, opts.Keywords)
	}
	return pc, nil
}

// readLogs reads the raw records in dirs dated within the last daysBack
// days, oldest first. Unreadable files are logged and skipped.
func (s *Service) readLogs(dirs []string, daysBack int) ([]LogEntry, error) {
	now := s.clock.Now()
	files, err := recovery.Scan(dirs, eventlog.WindowStart(now, daysBack), eventlog.WindowStart(now, 0))
	if err != nil {
		return nil, err
	}

	var out []LogEntry
	for _, f := range files {
		events, skipped, err := eventlog.ReadFile(f)
		if err != nil {
			s.logger.Warn("read log file failed", "file", filepath.Base(f), "error", err)
		}
		if skipped > 0 {
			s.logger.Debug("skipped malformed log lines", "file", filepath.Base(f), "lines", skipped)
		}
		date, _ := eventlog.ParseFileName(f)
		for _, ev := range events {
			out = append(out, LogEntry{Record: ev.Record, FileDate: date})
		}
	}
	slices.SortStableFunc(out, func(a, b LogEntry) int {
		return compareTimestamps(a.Timestamp, b.Timestamp)
	})
	return out, nil
}

func compareTimestamps(a, b string) int {
	ta, okA := worklog.ParseTimestamp(a)
	tb, okB := worklog.ParseTimestamp(b)
	if okA && okB {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}

func filterProject(logs []LogEntry, project string) []LogEntry {
	if project == "" {
		return logs
	}
	var out []LogEntry
	for _, e := range logs {
		if worklog.MatchesProject(e.Project, e.Cwd, project) {
			out = append(out, e)
		}
	}
	return out
}

func operationCounts(logs []LogEntry) map[string]int {
	counts := make(map[string]int)
	for _, e := range logs {
		op := e.Operation
		if op == "" {
			op = "unknown"
		}
		counts[op]++
	}
	return counts
}

func keywordMatches(logs []LogEntry, keywords []string) *KeywordMatches {
	lower := make([]string, len(keywords))
	for i, kw := range keywords {
		lower[i] = strings.ToLower(kw)
	}
	var matches []LogEntry
	for _, e := range logs {
		prompt := strings.ToLower(e.Prompt)
		if slices.ContainsFunc(lower, func(kw string) bool { return strings.Contains(prompt, kw) }) {
			matches = append(matches, e)
		}
	}
	return &KeywordMatches{
		Keywords:   keywords,
		MatchCount: len(matches),
		Matches:    lastN(matches, recentLimit),
	}
}

// detailPaths returns the file paths named in event details.
func detailPaths(details map[string]any) []string {
	var out []string
	for _, key := range []string{"file_path", "target_file", "path"} {
		if p, ok := details[key].(string); ok && p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func touchedFiles(e LogEntry) []string {
	paths := detailPaths(e.Details)
	if len(paths) > 0 {
		return paths
	}
	switch strings.ToLower(e.Operation) {
	case "write", "edit", "read":
	default:
		return nil
	}
	for _, m := range promptPath.FindAllString(e.Prompt, -1) {
		if len(m) > 5 && !slices.Contains(paths, m) {
			paths = append(paths, m)
		}
	}
	return paths
}

func workLogView(entries []worklog.Entry, limit int) WorkLogView {
	tail := lastN(entries, limit)
	view := WorkLogView{TotalEntries: len(entries), Entries: make([]map[string]any, len(tail))}
	for i, e := range tail {
		view.Entries[i] = e.ToMap()
	}
	return view
}

func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
