package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/agentlog/internal/faults"
	"github.com/roach88/agentlog/internal/memory"
)

// ContextOptions holds flags shared by the context subcommands.
type ContextOptions struct {
	*RootOptions
	LogDirs  []string
	DaysBack int
}

// NewContextCommand creates the context command and its subcommands.
func NewContextCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ContextOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Query the memory documents together with the raw activity log",
		Long: `Combine the memory documents with what the raw activity log recorded.

Raw logs are read from the directories given with --logs-dir (or logs.dir
from the config). Each subcommand has its own default lookback window.

Example:
  agentlog context show agentlog
  agentlog context summary agentlog --days-back 14
  agentlog context files agentlog --pattern '*.go'
  agentlog context project ~/src/agentlog --keyword retry`,
	}

	cmd.PersistentFlags().StringSliceVar(&opts.LogDirs, "logs-dir", nil, "directory holding log files (repeatable; defaults to logs.dir)")
	cmd.PersistentFlags().IntVar(&opts.DaysBack, "days-back", 0, "lookback window in days (0 uses the subcommand default)")

	cmd.AddCommand(newContextShowCommand(opts))
	cmd.AddCommand(newContextSummaryCommand(opts))
	cmd.AddCommand(newContextFilesCommand(opts))
	cmd.AddCommand(newContextProjectCommand(opts))
	return cmd
}

func newContextShowCommand(opts *ContextOptions) *cobra.Command {
	var maxEntries int
	cmd := &cobra.Command{
		Use:   "show [project]",
		Short: "Show every memory document and recent raw activity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project := ""
			if len(args) == 1 {
				project = args[0]
			}
			return runContextQuery(opts, cmd, func(mem *memory.Service, dirs []string) (memory.Context, error) {
				return mem.Context(memory.ContextOptions{
					Dirs:       dirs,
					Project:    project,
					DaysBack:   opts.DaysBack,
					MaxEntries: maxEntries,
				})
			}, printContext)
		},
	}
	cmd.Flags().IntVar(&maxEntries, "max-entries", memory.DefaultContextEntries, "newest raw entries to include")
	return cmd
}

func newContextSummaryCommand(opts *ContextOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <project>",
		Short: "Summarize a project's operations and touched files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContextQuery(opts, cmd, func(mem *memory.Service, dirs []string) (memory.ActivitySummary, error) {
				return mem.ActivitySummary(dirs, args[0], opts.DaysBack)
			}, printSummary)
		},
	}
}

func newContextFilesCommand(opts *ContextOptions) *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "files <project>",
		Short: "List the files a project's events touched, most active first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContextQuery(opts, cmd, func(mem *memory.Service, dirs []string) (memory.FileHistory, error) {
				return mem.FileHistory(memory.HistoryOptions{
					Dirs:     dirs,
					Project:  args[0],
					Pattern:  pattern,
					DaysBack: opts.DaysBack,
				})
			}, printFileHistory)
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "only files whose base name matches this glob")
	return cmd
}

func newContextProjectCommand(opts *ContextOptions) *cobra.Command {
	var keywords []string
	var noFiles bool
	cmd := &cobra.Command{
		Use:   "project <path>",
		Short: "Show the long-range context of one project directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContextQuery(opts, cmd, func(mem *memory.Service, dirs []string) (memory.ProjectContext, error) {
				return mem.ProjectContext(memory.ProjectOptions{
					Dirs:            dirs,
					Path:            args[0],
					DaysBack:        opts.DaysBack,
					Keywords:        keywords,
					SkipFileHistory: noFiles,
				})
			}, printProjectContext)
		},
	}
	cmd.Flags().StringSliceVar(&keywords, "keyword", nil, "report entries whose prompt mentions this keyword (repeatable)")
	cmd.Flags().BoolVar(&noFiles, "no-file-history", false, "skip the file history section")
	return cmd
}

// runContextQuery runs query against the configured memory and log
// directories, then emits the result as JSON or through render.
func runContextQuery[T any](
	opts *ContextOptions,
	cmd *cobra.Command,
	query func(mem *memory.Service, dirs []string) (T, error),
	render func(*OutputFormatter, T),
) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.DaysBack < 0 {
		return a.formatter.Fail(ExitCommandError, ErrCodeInvalidArgs, "--days-back must not be negative", nil)
	}
	dirs := opts.LogDirs
	if len(dirs) == 0 {
		dirs = []string{a.cfg.Logs.Dir}
	}
	_, mem, err := a.openMemory(nil)
	if err != nil {
		return err
	}

	res, err := query(mem, dirs)
	if err != nil {
		if faults.IsValidation(err) {
			return a.formatter.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid query", err)
		}
		return a.formatter.Fail(ExitFailure, ErrCodeContextFailed, "context query failed", err)
	}
	if a.formatter.JSON() {
		return a.formatter.Success(res)
	}
	render(a.formatter, res)
	return nil
}

func printContext(f *OutputFormatter, c memory.Context) {
	w := f.Writer
	scope := "all projects"
	if c.ProjectFilter != "" {
		scope = c.ProjectFilter
	}
	fmt.Fprintf(w, "Context for %s (last %d days)\n", scope, c.DaysBack)
	fmt.Fprintf(w, "Session state keys: %d  planned tasks: %d  checkpoint: %t\n",
		len(c.SessionState), taskCount(c.PlannedTasks), len(c.RecoveryCheckpoint) > 0)
	fmt.Fprintf(w, "Work log entries: %d\n", c.WorkLog.TotalEntries)
	fmt.Fprintf(w, "Raw log entries: %d (showing %d)\n", c.HookLogs.TotalEntries, len(c.HookLogs.RecentEntries))
	for _, e := range c.HookLogs.RecentEntries {
		fmt.Fprintf(w, "  %s  %-12s %s\n", e.Timestamp, e.Operation, clipText(e.Prompt, 80))
	}
}

func printSummary(f *OutputFormatter, s memory.ActivitySummary) {
	w := f.Writer
	fmt.Fprintf(w, "Project %s: %d entries in the last %d days\n", s.Project, s.TotalEntries, s.DaysBack)
	printCounts(f, "By operation:", s.OperationCounts)
	if len(s.FilesTouched) > 0 {
		fmt.Fprintf(w, "Files touched (%d):\n", len(s.FilesTouched))
		for _, p := range s.FilesTouched {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
}

func printFileHistory(f *OutputFormatter, h memory.FileHistory) {
	w := f.Writer
	fmt.Fprintf(w, "%d file(s), %d operation(s) in the last %d days\n",
		h.TotalFilesTouched, h.TotalOperations, h.DaysBack)
	for _, fa := range h.MostActiveFiles {
		fmt.Fprintf(w, "  %4d  %s\n", fa.OperationCount, fa.File)
	}
}

func printProjectContext(f *OutputFormatter, pc memory.ProjectContext) {
	w := f.Writer
	fmt.Fprintf(w, "Project %s (%s), last %d days\n", pc.ProjectName, pc.ProjectPath, pc.DaysBack)
	s := pc.Summary
	if s.DateRange.DaysWithActivity == 0 {
		fmt.Fprintln(w, "No recorded activity.")
	} else {
		fmt.Fprintf(w, "Active on %d day(s), %s .. %s; recent activity: %t\n",
			s.DateRange.DaysWithActivity, s.DateRange.From, s.DateRange.To, s.HasRecentActivity)
	}
	fmt.Fprintf(w, "Significant entries: %d  sessions: %d  work log entries: %d\n",
		s.TotalSignificantEntries, s.UniqueSessions, pc.WorkLog.TotalEntries)
	printCounts(f, "By operation:", s.OperationCounts)
	if pc.FileHistory != nil && len(pc.FileHistory.MostActiveFiles) > 0 {
		fmt.Fprintln(w, "Most active files:")
		for _, fa := range pc.FileHistory.MostActiveFiles {
			fmt.Fprintf(w, "  %4d  %s\n", fa.OperationCount, fa.File)
		}
	}
	if pc.KeywordMatches != nil {
		fmt.Fprintf(w, "Keyword matches for %v: %d\n", pc.KeywordMatches.Keywords, pc.KeywordMatches.MatchCount)
		for _, e := range pc.KeywordMatches.Matches {
			fmt.Fprintf(w, "  %s  %-12s %s\n", e.Timestamp, e.Operation, clipText(e.Prompt, 80))
		}
	}
}

func taskCount(doc map[string]any) int {
	tasks, _ := doc["tasks"].([]any)
	return len(tasks)
}

func clipText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
