// Package recovery rebuilds the work log from the raw event log after loss
// or corruption.
//
// Events are identified by Fingerprint, a keyed BLAKE3 hash over the event
// timestamp, operation, the first 100 runes of its payload and its session
// id. Merge skips any candidate whose fingerprint is already present in the
// work log, its archives, or earlier in the same run, so recovering the same
// files twice imports nothing the second time.
package recovery
