package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/agentlog/internal/eventlog"
	"github.com/roach88/agentlog/internal/memory"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	SessionID string
	Project   string
	Cwd       string
	Details   string
	Result    string
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log <operation> [prompt]",
		Short: "Capture one agent event",
		Long: `Append one event to today's activity log and feed it to the work log.

Intended to be called from agent hooks. Once the arguments are valid the
command always exits 0: a failure in the memory layer is logged and never
fails the hook that triggered it.

Example:
  agentlog log user_prompt "add retry to the uploader"
  agentlog log bash "go test ./..." --details '{"command":"go test ./..."}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id (defaults to $AGENTLOG_SESSION_ID, else a new UUIDv7)")
	cmd.Flags().StringVar(&opts.Project, "project", "", "project name (defaults to the base name of --cwd)")
	cmd.Flags().StringVar(&opts.Cwd, "cwd", "", "working directory (defaults to the current directory)")
	cmd.Flags().StringVar(&opts.Details, "details", "", "JSON object with operation details")
	cmd.Flags().StringVar(&opts.Result, "result", "", "operation result")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command, args []string) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	op := strings.ToLower(strings.TrimSpace(args[0]))
	if op == "" {
		return a.formatter.Fail(ExitCommandError, ErrCodeInvalidArgs, "operation must not be empty", nil)
	}
	prompt := ""
	if len(args) == 2 {
		prompt = args[1]
	}

	var details map[string]any
	if opts.Details != "" {
		if err := json.Unmarshal([]byte(opts.Details), &details); err != nil {
			return a.formatter.Fail(ExitCommandError, ErrCodeInvalidArgs, "--details must be a JSON object", err)
		}
	}

	cwd := opts.Cwd
	if cwd == "" {
		cwd, _ = os.Getwd()
	}
	project := opts.Project
	if project == "" && cwd != "" {
		project = filepath.Base(cwd)
	}
	session := opts.SessionID
	if session == "" {
		session = os.Getenv("AGENTLOG_SESSION_ID")
	}

	appender, err := eventlog.NewAppender(a.cfg.Logs.Dir, eventlog.AppenderOptions{
		Clock:           a.clock,
		SessionID:       session,
		User:            os.Getenv("USER"),
		Cwd:             cwd,
		Project:         project,
		MaxPromptLength: a.cfg.Logs.MaxPromptLength,
	})
	if err != nil {
		a.logger.Error("capture failed", "error", err)
		return nil
	}
	rec, err := appender.Append(eventlog.Record{
		Operation: op,
		Prompt:    prompt,
		Details:   details,
		Result:    opts.Result,
	})
	if err != nil {
		a.logger.Error("capture failed", "operation", op, "error", err)
		return nil
	}

	if _, mem, err := a.openMemory(nil); err != nil {
		a.logger.Error("memory unavailable, work log not updated", "error", err)
	} else {
		ev := memory.ToolEvent{
			Timestamp: rec.Timestamp,
			LocalTime: rec.Time,
			Operation: rec.Operation,
			Prompt:    rec.Prompt,
			SessionID: rec.SessionID,
			Project:   rec.Project,
			Cwd:       rec.Cwd,
			Details:   rec.Details,
		}
		if op == "user_prompt" {
			mem.OnUserPrompt(ev)
		} else {
			mem.OnToolUse(ev)
		}
		if err := mem.UpdateSessionState(map[string]any{
			"current_session_id": rec.SessionID,
			"last_operation":     rec.Operation,
		}); err != nil {
			a.logger.Error("session state not updated", "error", err)
		}
	}

	if a.formatter.JSON() {
		return a.formatter.Success(rec)
	}
	a.formatter.VerboseLog("logged %s to %s", rec.Operation, eventlog.FileName(a.clock.Now()))
	return nil
}
