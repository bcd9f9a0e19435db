// Package worklog keeps a bounded history of significant agent operations.
//
// The active log holds at most MaxEntries entries in timestamp order. When
// an append pushes it over the cap, the oldest entries are grouped by the
// calendar quarter of their timestamp and appended to archive documents
// (work_log_2026Q1 and so on) before being trimmed. Archiving is
// best-effort: a failed archive write is logged and the active log is
// still saved.
package worklog
