package store

import "time"

// Name identifies one of the fixed set of memory documents.
type Name string

const (
	SessionState       Name = "session_state"
	PlannedTasks       Name = "planned_tasks"
	WorkLog            Name = "work_log"
	RecoveryCheckpoint Name = "recovery_checkpoint"
)

// Names returns every document name in a stable order.
func Names() []Name {
	return []Name{SessionState, PlannedTasks, WorkLog, RecoveryCheckpoint}
}

// Critical reports whether the document is backed up before every overwrite
// and recovered from backup when it fails to load.
func (n Name) Critical() bool {
	return n == WorkLog || n == PlannedTasks
}

// Known reports whether n is one of the fixed document names.
func (n Name) Known() bool {
	for _, k := range Names() {
		if n == k {
			return true
		}
	}
	return false
}

// Document is a structured memory document: a mapping from top-level keys
// to YAML/JSON-compatible values.
type Document = map[string]any

// Entries returns the document's "entries" sequence, or nil when absent or
// not a sequence.
func Entries(doc Document) []any {
	entries, _ := doc["entries"].([]any)
	return entries
}

// timestampLayout is the layout of timestamps the store writes into
// documents.
const timestampLayout = time.RFC3339Nano
