package recovery

import (
	"sort"

	"github.com/roach88/agentlog/internal/eventlog"
	"github.com/roach88/agentlog/internal/worklog"
)

// ImportedFrom marks work log entries rebuilt from the raw event log.
const ImportedFrom = "event_log"

// MergeOptions tunes Merge.
type MergeOptions struct {
	// Known holds fingerprints of entries that exist outside the active
	// log (for example in archives) and must not be imported again.
	Known map[string]bool

	// ImportTime is stamped on imported entries as import_time.
	ImportTime string
}

// MergeResult is the outcome of Merge.
type MergeResult struct {
	// Entries is the existing log plus the imported entries, ordered by
	// timestamp.
	Entries []worklog.Entry

	// Imported lists the accepted candidates in input order.
	Imported []worklog.Entry

	Duplicates    int
	Insignificant int
}

// Merge folds candidate events into existing. A candidate is skipped when
// its operation is not significant, or when its fingerprint matches an
// existing entry, a known fingerprint, or a candidate already accepted in
// this call. Accepted candidates become work log entries and the combined
// list is stably re-sorted by timestamp.
func Merge(existing []worklog.Entry, candidates []eventlog.Event, opts MergeOptions) MergeResult {
	seen := make(map[string]bool, len(existing)+len(opts.Known))
	for fp := range opts.Known {
		seen[fp] = true
	}
	for _, e := range existing {
		seen[FingerprintEntry(e)] = true
	}

	var res MergeResult
	for _, ev := range candidates {
		if !worklog.IsSignificant(ev.Operation) {
			res.Insignificant++
			continue
		}
		fp := FingerprintRecord(ev.Record)
		if seen[fp] {
			res.Duplicates++
			continue
		}
		seen[fp] = true
		res.Imported = append(res.Imported, toEntry(ev, opts.ImportTime))
	}

	res.Entries = make([]worklog.Entry, 0, len(existing)+len(res.Imported))
	res.Entries = append(res.Entries, existing...)
	res.Entries = append(res.Entries, res.Imported...)
	sort.SliceStable(res.Entries, func(i, j int) bool {
		return canonicalTimestamp(res.Entries[i].Timestamp) < canonicalTimestamp(res.Entries[j].Timestamp)
	})
	return res
}

// toEntry converts a raw event into work log form.
func toEntry(ev eventlog.Event, importTime string) worklog.Entry {
	extra := map[string]any{"imported_from": ImportedFrom}
	if importTime != "" {
		extra["import_time"] = importTime
	}
	return worklog.Entry{
		Timestamp:   ev.Timestamp,
		LocalTime:   ev.Time,
		Operation:   ev.Operation,
		Description: worklog.TruncateDescription(ev.Prompt),
		Project:     ev.Project,
		Cwd:         ev.Cwd,
		SessionID:   ev.SessionID,
		Details:     ev.Details,
		Extra:       extra,
	}
}
