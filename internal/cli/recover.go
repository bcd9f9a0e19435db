package cli

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/agentlog/internal/recovery"
)

// RecoverOptions holds flags for the recover command.
type RecoverOptions struct {
	*RootOptions
	DryRun   bool
	Stats    bool
	From     string
	To       string
	DaysBack int
	LogDirs  []string
}

// RecoverResult is the JSON payload of a recovery run.
type RecoverResult struct {
	DryRun        bool     `json:"dry_run"`
	Files         []string `json:"files"`
	Existing      int      `json:"existing"`
	Imported      int      `json:"imported"`
	Duplicates    int      `json:"duplicates"`
	Insignificant int      `json:"insignificant"`
	Malformed     int      `json:"malformed"`
}

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecoverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Rebuild the work log from the raw activity log",
		Long: `Scan agent-activity-YYYY-MM-DD.log files and merge every significant event
the work log does not already hold. Events are matched by fingerprint, so
running recover twice imports nothing the second time.

Only the directories given with --logs-dir (or logs.dir from the config)
are searched.

Example:
  agentlog recover --stats
  agentlog recover --dry-run --from 2026-01-01
  agentlog recover --days-back 90
  agentlog recover --logs-dir ~/.agentlog/logs --logs-dir /backup/logs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecover(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would be imported without writing")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "print log statistics instead of recovering")
	cmd.Flags().StringVar(&opts.From, "from", "", "first log date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last log date to include (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.DaysBack, "days-back", 0, "only read logs from the last N days when --from is not set (0 reads all)")
	cmd.Flags().StringSliceVar(&opts.LogDirs, "logs-dir", nil, "directory holding log files (repeatable; defaults to logs.dir)")

	return cmd
}

func runRecover(opts *RecoverOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, d := range []string{opts.From, opts.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return a.formatter.Fail(ExitCommandError, ErrCodeInvalidArgs, fmt.Sprintf("invalid date %q", d), err)
		}
	}

	if opts.DaysBack < 0 {
		return a.formatter.Fail(ExitCommandError, ErrCodeInvalidArgs, "--days-back must not be negative", nil)
	}

	dirs := opts.LogDirs
	if len(dirs) == 0 {
		dirs = []string{a.cfg.Logs.Dir}
	}

	st, mem, err := a.openMemory(nil)
	if err != nil {
		return err
	}
	agg := recovery.NewAggregator(st, mem.WorkLog(), a.clock, a.logger)
	scope := recovery.Options{
		Dirs:     dirs,
		From:     opts.From,
		To:       opts.To,
		DaysBack: opts.DaysBack,
		DryRun:   opts.DryRun,
	}

	if opts.Stats {
		stats, err := agg.Stats(scope)
		if err != nil {
			return a.formatter.Fail(ExitCommandError, ErrCodeRecoverFailed, "failed to read logs", err)
		}
		if a.formatter.JSON() {
			return a.formatter.Success(stats)
		}
		printStats(a.formatter, stats)
		return nil
	}

	res, err := agg.Recover(scope)
	if err != nil {
		return a.formatter.Fail(ExitFailure, ErrCodeRecoverFailed, "recovery failed", err)
	}

	out := RecoverResult{
		DryRun:        res.DryRun,
		Files:         res.Files,
		Existing:      res.Existing,
		Imported:      len(res.Imported),
		Duplicates:    res.Duplicates,
		Insignificant: res.Insignificant,
		Malformed:     res.Malformed,
	}
	if a.formatter.JSON() {
		return a.formatter.Success(out)
	}

	w := a.formatter.Writer
	verb := "Recovered"
	if res.DryRun {
		verb = "Dry run: would recover"
	}
	fmt.Fprintf(w, "%s %d entries from %d file(s)\n", verb, out.Imported, len(out.Files))
	fmt.Fprintf(w, "  existing: %d  duplicates: %d  insignificant: %d  malformed: %d\n",
		out.Existing, out.Duplicates, out.Insignificant, out.Malformed)
	if res.DryRun {
		for i, e := range res.Imported {
			if i == 10 {
				fmt.Fprintf(w, "  ... and %d more\n", len(res.Imported)-10)
				break
			}
			fmt.Fprintf(w, "  %s  %-12s %s\n", e.Timestamp, e.Operation, e.Description)
		}
	}
	return nil
}

func printStats(f *OutputFormatter, s recovery.Stats) {
	w := f.Writer
	if s.Files == 0 {
		fmt.Fprintln(w, "No log files found.")
		return
	}
	fmt.Fprintf(w, "Files:    %d (%s .. %s)\n", s.Files, s.FirstDate, s.LastDate)
	fmt.Fprintf(w, "Events:   %d total, %d significant, %d malformed\n", s.Total, s.Significant, s.Malformed)
	fmt.Fprintf(w, "Work log: %d existing, %d potential new\n", s.Existing, s.PotentialNew)

	printCounts(f, "By operation:", s.ByOperation)
	printCounts(f, "By project:", s.ByProject)
}

func printCounts(f *OutputFormatter, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintln(f.Writer, title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	slices.SortStableFunc(keys, func(x, y string) int { return counts[y] - counts[x] })
	for _, k := range keys {
		fmt.Fprintf(f.Writer, "  %-20s %d\n", k, counts[k])
	}
}
