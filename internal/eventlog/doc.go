// Package eventlog reads and writes the local append-only activity log.
//
// Captured events are stored one JSON object per line in daily files named
// agent-activity-YYYY-MM-DD.log. The log is the only source of truth for
// recovery, so it is never rewritten in place:
//
//   - Appender emits each record as a single O_APPEND write ending in '\n'
//   - Tailer resumes from a caller-owned Position and never consumes a
//     trailing line that has no terminator yet
//   - ListFiles / ReadFile scan whole files for disaster recovery
//
// Malformed lines are skipped and counted; they never abort a read.
package eventlog
