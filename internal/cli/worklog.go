package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/agentlog/internal/worklog"
)

// WorkLogOptions holds flags for the worklog command.
type WorkLogOptions struct {
	*RootOptions
	Project string
	Limit   int
}

// WorkLogEntry is the JSON shape of one listed entry.
type WorkLogEntry struct {
	Timestamp   string `json:"timestamp"`
	Operation   string `json:"operation"`
	Description string `json:"description"`
	Project     string `json:"project,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// NewWorkLogCommand creates the worklog command.
func NewWorkLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkLogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "worklog",
		Short: "List recent work log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkLog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "only entries for this project (name or path fragment)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "show at most this many of the newest entries (0 for all)")

	return cmd
}

func runWorkLog(opts *WorkLogOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.Limit < 0 {
		return a.formatter.Fail(ExitCommandError, ErrCodeInvalidArgs, "--limit must not be negative", nil)
	}

	_, mem, err := a.openMemory(nil)
	if err != nil {
		return err
	}

	var entries []worklog.Entry
	if opts.Project != "" {
		entries = mem.WorkLog().ForProject(opts.Project)
	} else {
		entries = mem.WorkLog().Get()
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[len(entries)-opts.Limit:]
	}

	if a.formatter.JSON() {
		out := make([]WorkLogEntry, len(entries))
		for i, e := range entries {
			out[i] = WorkLogEntry{
				Timestamp:   e.Timestamp,
				Operation:   e.Operation,
				Description: e.Description,
				Project:     e.Project,
				SessionID:   e.SessionID,
			}
		}
		return a.formatter.Success(out)
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.formatter.Writer, "No work log entries.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(a.formatter.Writer, "%s  %-12s %s\n", e.Timestamp, e.Operation, e.Description)
	}
	return nil
}
