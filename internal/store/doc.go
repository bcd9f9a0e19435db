// Package store provides durable storage for the memory documents.
//
// Four named documents live in one directory: session_state, planned_tasks,
// work_log and recovery_checkpoint. work_log and planned_tasks are critical:
// they are backed up before every overwrite and recovered from backup when
// they fail to load.
//
// # Lifecycle
//
//   - Save: validate, back up the current primary (critical only), prune
//     backups beyond the retention count, replace the primary atomically
//   - Load: parse and validate; on failure of a critical document,
//     quarantine the file, adopt the newest valid backup and re-persist it
//   - Quarantine: the broken file moves to corrupt/ with a .meta.yaml
//     sidecar holding original_path, quarantined_at and error
//
// Load never fails. Missing, empty, or unrecoverable documents read as an
// empty Document. A document with no valid backup is not retried again by
// the same Store until a Save succeeds.
//
// # Validation
//
// Each document kind has a CUE definition (see schema.go). Definitions are
// open, so extra keys survive a round trip, but a present field of the wrong
// shape (entries that is not a list, tasks that is not a list) makes the
// document corrupt. Invalid documents are never coerced.
//
// # Naming
//
// Backup and quarantine file names embed a UTC creation stamp and are only
// produced and parsed by StampedName / ParseStampedName.
package store
