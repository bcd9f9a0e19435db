package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show memory document, backup and archive status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
	return cmd
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	a, err := newApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	_, mem, err := a.openMemory(nil)
	if err != nil {
		return err
	}
	status, err := mem.Status()
	if err != nil {
		return a.formatter.Fail(ExitFailure, ErrCodeStore, "failed to read status", err)
	}
	if a.formatter.JSON() {
		return a.formatter.Success(status)
	}

	w := a.formatter.Writer
	fmt.Fprintf(w, "Memory: %s\n", status.Dir)
	for _, f := range status.Files {
		mark := "-"
		if f.Exists {
			mark = "✓"
		}
		critical := ""
		if f.Critical {
			critical = " (critical)"
		}
		fmt.Fprintf(w, "  %s %-20s %8d bytes  backups: %d  corrupt: %d%s\n",
			mark, f.Name, f.Size, f.Backups, f.Corrupt, critical)
	}
	fmt.Fprintf(w, "Work log entries: %d\n", status.WorkLogLen)
	if len(status.Archives) > 0 {
		fmt.Fprintf(w, "Archives: %v\n", status.Archives)
	}
	return nil
}
