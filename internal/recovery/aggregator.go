package recovery

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/roach88/agentlog/internal/clock"
	"github.com/roach88/agentlog/internal/eventlog"
	"github.com/roach88/agentlog/internal/store"
	"github.com/roach88/agentlog/internal/worklog"
)

// Options selects the raw log files to read.
type Options struct {
	// Dirs are the directories holding agent-activity-*.log files. Only
	// these directories are searched.
	Dirs []string

	// From and To bound the file dates (YYYY-MM-DD); empty is open.
	From string
	To   string

	// DaysBack, when positive and From is empty, limits the scan to files
	// dated within the last DaysBack days.
	DaysBack int

	// DryRun computes the import set without writing.
	DryRun bool
}

// from resolves the lower date bound.
func (o Options) from(now time.Time) string {
	if o.From == "" && o.DaysBack > 0 {
		return eventlog.WindowStart(now, o.DaysBack)
	}
	return o.From
}

// Result reports what Recover did, or would do in a dry run.
type Result struct {
	Files         []string
	Existing      int
	Imported      []worklog.Entry
	Duplicates    int
	Insignificant int
	Malformed     int
	DryRun        bool
}

// Aggregator rebuilds the work log from the raw event log.
type Aggregator struct {
	store   *store.Store
	worklog *worklog.Manager
	clock   clock.Clock
	logger  *slog.Logger
}

// NewAggregator returns an Aggregator writing through wl. st is used to read
// archived entries so they are not imported twice.
func NewAggregator(st *store.Store, wl *worklog.Manager, c clock.Clock, logger *slog.Logger) *Aggregator {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{store: st, worklog: wl, clock: c, logger: logger.With("component", "recovery")}
}

// Recover merges significant events from the selected log files into the
// work log. Nothing is written in a dry run or when there is nothing new.
// The write goes through the record store, which backs up the current work
// log first.
func (a *Aggregator) Recover(opts Options) (Result, error) {
	res := Result{DryRun: opts.DryRun}

	files, err := Scan(opts.Dirs, opts.from(a.clock.Now()), opts.To)
	if err != nil {
		return res, fmt.Errorf("recover: %w", err)
	}
	res.Files = files

	events, malformed := a.readAll(files)
	res.Malformed = malformed

	existing := a.worklog.Get()
	res.Existing = len(existing)

	now := a.clock.Now().UTC().Format(time.RFC3339Nano)
	merged := Merge(existing, events, MergeOptions{Known: a.archivedFingerprints(), ImportTime: now})
	res.Imported = merged.Imported
	res.Duplicates = merged.Duplicates
	res.Insignificant = merged.Insignificant

	a.logger.Info("recovery scan complete",
		"files", len(files), "existing", res.Existing, "new", len(res.Imported),
		"duplicates", res.Duplicates, "dry_run", opts.DryRun)

	if opts.DryRun || len(res.Imported) == 0 {
		return res, nil
	}

	lastRecovery := map[string]any{
		"timestamp":         now,
		"entries_recovered": len(res.Imported),
		"source_files":      len(files),
	}
	if err := a.worklog.Restore(merged.Entries, lastRecovery); err != nil {
		return res, fmt.Errorf("recover: %w", err)
	}
	return res, nil
}

// Stats summarizes the selected log files.
type Stats struct {
	Files        int            `json:"files"`
	FirstDate    string         `json:"first_date,omitempty"`
	LastDate     string         `json:"last_date,omitempty"`
	Total        int            `json:"total"`
	Significant  int            `json:"significant"`
	Malformed    int            `json:"malformed"`
	ByOperation  map[string]int `json:"by_operation"`
	ByProject    map[string]int `json:"by_project"`
	Existing     int            `json:"existing"`
	PotentialNew int            `json:"potential_new"`
}

// Stats counts the events in the selected files and how many of them a
// Recover would import.
func (a *Aggregator) Stats(opts Options) (Stats, error) {
	st := Stats{ByOperation: map[string]int{}, ByProject: map[string]int{}}

	files, err := Scan(opts.Dirs, opts.from(a.clock.Now()), opts.To)
	if err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	st.Files = len(files)
	for _, f := range files {
		date, _ := eventlog.ParseFileName(f)
		if st.FirstDate == "" || date < st.FirstDate {
			st.FirstDate = date
		}
		if date > st.LastDate {
			st.LastDate = date
		}
	}

	events, malformed := a.readAll(files)
	st.Malformed = malformed
	st.Total = len(events)
	for _, ev := range events {
		op := ev.Operation
		if op == "" {
			op = "unknown"
		}
		st.ByOperation[op]++
		if worklog.IsSignificant(ev.Operation) {
			st.Significant++
			project := ev.Project
			if project == "" {
				project = "unknown"
			}
			st.ByProject[project]++
		}
	}

	existing := a.worklog.Get()
	st.Existing = len(existing)
	st.PotentialNew = len(Merge(existing, events, MergeOptions{Known: a.archivedFingerprints()}).Imported)
	return st, nil
}

// readAll reads every file, logging and skipping files that cannot be read.
func (a *Aggregator) readAll(files []string) ([]eventlog.Event, int) {
	var events []eventlog.Event
	malformed := 0
	for _, f := range files {
		evs, skipped, err := eventlog.ReadFile(f)
		if err != nil {
			a.logger.Error("read log file failed", "file", filepath.Base(f), "error", err)
		}
		events = append(events, evs...)
		malformed += skipped
	}
	return events, malformed
}

func (a *Aggregator) archivedFingerprints() map[string]bool {
	known := make(map[string]bool)
	keys, err := a.store.Archives()
	if err != nil {
		a.logger.Warn("list archives failed", "error", err)
		return known
	}
	for _, k := range keys {
		doc, err := a.store.Archive(k)
		if err != nil {
			a.logger.Warn("read archive failed", "archive", k, "error", err)
			continue
		}
		for _, raw := range store.Entries(doc) {
			if m, ok := raw.(map[string]any); ok {
				known[FingerprintEntry(worklog.FromMap(m))] = true
			}
		}
	}
	return known
}
