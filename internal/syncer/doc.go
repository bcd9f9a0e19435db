// Package syncer delivers the local activity log to a remote sink.
//
// A Service cycles IDLE, READ, UPLOAD, CHECKPOINT and back to IDLE. The
// checkpoint file is rewritten only after the sink confirms a batch, so a
// crash can cause a batch to be delivered again but never lost.
package syncer
