package eventlog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/agentlog/internal/clock"
)

// Position identifies how far into a log file reading has progressed.
type Position struct {
	// File is the absolute path of the log file.
	File string

	// Offset is the byte offset just past the last consumed line.
	Offset int64

	// Line is the number of lines consumed so far (0 if unknown).
	Line int
}

// Batch is the result of one ReadNew call.
type Batch struct {
	// Events holds the successfully parsed records, in file order.
	Events []Event

	// Position is the point reached. Callers persist it only after the
	// events have been delivered downstream.
	Position Position

	// Skipped counts lines that failed to parse.
	Skipped int

	// Rollover is true when reading started at offset 0 because today's
	// file differs from the one in the starting position.
	Rollover bool
}

// Tailer incrementally reads today's log file starting from a recorded
// Position. It keeps no position of its own: the caller owns the checkpoint.
type Tailer struct {
	dir    string
	clock  clock.Clock
	logger *slog.Logger
}

// NewTailer returns a Tailer over the daily log files in dir.
func NewTailer(dir string, c clock.Clock, logger *slog.Logger) *Tailer {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tailer{dir: dir, clock: c, logger: logger}
}

// CurrentFile returns the absolute path of today's log file.
func (t *Tailer) CurrentFile() string {
	return normalizePath(filepath.Join(t.dir, FileName(t.clock.Now())))
}

// ReadNew reads up to limit records appended since from. A limit of zero or
// less means no limit.
//
// If today's file is not the file in from, reading starts at offset 0.
// Only complete lines are consumed; lines that fail to parse are skipped
// and counted. When today's file does not exist yet, an empty batch is
// returned with the position unchanged.
func (t *Tailer) ReadNew(from Position, limit int) (Batch, error) {
	path := t.CurrentFile()
	batch := Batch{Position: from}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return batch, nil
	}
	if err != nil {
		return batch, fmt.Errorf("tail %s: %w", path, err)
	}
	defer f.Close()

	start, line := int64(0), 0
	if from.File != "" && normalizePath(from.File) == path {
		start, line = from.Offset, from.Line
	} else {
		batch.Rollover = true
		t.logger.Info("new log file detected", "file", filepath.Base(path), "previous", from.File)
	}

	info, err := f.Stat()
	if err != nil {
		return batch, fmt.Errorf("tail %s: stat: %w", path, err)
	}
	if start > info.Size() {
		t.logger.Warn("log file shorter than checkpoint, rereading from start",
			"file", path, "offset", start, "size", info.Size())
		start, line = 0, 0
	}

	if start > 0 && line == 0 {
		line, err = countLines(f, start)
		if err != nil {
			return batch, fmt.Errorf("tail %s: count lines: %w", path, err)
		}
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return batch, fmt.Errorf("tail %s: seek: %w", path, err)
	}

	lr := newLineReader(f, filepath.Base(path), start, line)
	for limit <= 0 || len(batch.Events) < limit {
		ev, parseErr, ok, err := lr.next()
		if err != nil {
			return batch, err
		}
		if !ok {
			break
		}
		if parseErr != nil {
			batch.Skipped++
			t.logger.Warn("skipping malformed line", "error", parseErr)
			continue
		}
		batch.Events = append(batch.Events, ev)
	}

	batch.Position = Position{File: path, Offset: lr.offset, Line: lr.line}
	return batch, nil
}

func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}
