package syncer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/agentlog/internal/eventlog"
	"github.com/roach88/agentlog/internal/fileutil"
)

// CheckpointFile is the checkpoint's file name inside the logs directory.
const CheckpointFile = ".sync_state.json"

// Checkpoint records how much of the local log has been delivered to the
// sink. It is advanced only after the sink has confirmed a batch.
type Checkpoint struct {
	LastFile     string `json:"last_file,omitempty"`
	LastPosition int64  `json:"last_position"`
	LastLine     int    `json:"last_line"`
	LastEpoch    int64  `json:"last_epoch"`
	LastSyncTime string `json:"last_sync_time,omitempty"`
	TotalSynced  int64  `json:"total_synced"`
}

// LoadCheckpoint reads the checkpoint at path. A missing file yields the
// zero checkpoint. An unreadable or corrupt file is logged and also yields
// the zero checkpoint: rereading is safe because the sink ignores rows it
// already holds.
func LoadCheckpoint(path string, logger *slog.Logger) (Checkpoint, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Checkpoint{}, nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		logger.Warn("checkpoint unreadable, starting fresh", "path", path, "error", err)
		return Checkpoint{}, nil
	}
	if cp.LastPosition < 0 || cp.LastLine < 0 {
		logger.Warn("checkpoint has negative position, starting fresh", "path", path)
		return Checkpoint{}, nil
	}
	return cp, nil
}

// Save writes the checkpoint to path atomically.
func (c Checkpoint) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := fileutil.WriteAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Position returns the tail position the checkpoint points at.
func (c Checkpoint) Position() eventlog.Position {
	return eventlog.Position{File: c.LastFile, Offset: c.LastPosition, Line: c.LastLine}
}

// Advance moves the checkpoint to pos after delivered has been confirmed
// by the sink.
func (c *Checkpoint) Advance(pos eventlog.Position, delivered []eventlog.Event, at time.Time) {
	c.LastFile = pos.File
	c.LastPosition = pos.Offset
	c.LastLine = pos.Line
	if n := len(delivered); n > 0 {
		c.LastEpoch = delivered[n-1].Epoch
		c.TotalSynced += int64(n)
		c.LastSyncTime = at.UTC().Format(time.RFC3339)
	}
}
