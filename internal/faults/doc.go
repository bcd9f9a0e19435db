// Package faults classifies failures in the persistence and sync layers.
//
// Callers branch on the Kind of an error rather than on its concrete type:
//
//   - KindTransientRemote: retry up to the configured attempt count
//   - KindPermanentValidation: quarantine the document and recover from backup
//   - KindParseSkip: skip the record, count it, keep going
//   - KindConfigMissing: stop before touching any state
//
// All helpers use errors.As, so classified errors may be wrapped freely
// with fmt.Errorf("...: %w", err).
package faults
