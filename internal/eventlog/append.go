package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/agentlog/internal/clock"
)

// DefaultMaxPromptLength is the prompt length beyond which Append truncates.
const DefaultMaxPromptLength = 500

// AppenderOptions configures an Appender. Zero values select defaults.
type AppenderOptions struct {
	Clock           clock.Clock
	SessionID       string
	User            string
	Cwd             string
	Project         string
	MaxPromptLength int
}

// Appender writes records to the daily log file.
//
// Many short-lived processes append to the same file concurrently. Each
// record goes out as exactly one write on a descriptor opened with
// O_APPEND, and previously written bytes are never rewritten, so no file
// locking is needed.
type Appender struct {
	dir  string
	opts AppenderOptions
}

// NewAppender creates the log directory if needed and returns an Appender.
func NewAppender(dir string, opts AppenderOptions) (*Appender, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.SessionID == "" {
		opts.SessionID = NewSessionID()
	}
	if opts.MaxPromptLength <= 0 {
		opts.MaxPromptLength = DefaultMaxPromptLength
	}
	return &Appender{dir: dir, opts: opts}, nil
}

// SessionID returns the session identifier stamped on records that carry none.
func (a *Appender) SessionID() string {
	return a.opts.SessionID
}

// Append stamps rec with time and context fields and appends it to today's
// log file. The stamped record is returned.
func (a *Appender) Append(rec Record) (Record, error) {
	now := a.opts.Clock.Now()
	rec = a.stamp(rec, now)

	line, err := MarshalLine(rec)
	if err != nil {
		return rec, err
	}

	path := filepath.Join(a.dir, FileName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return rec, fmt.Errorf("append record: open: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return rec, fmt.Errorf("append record: write: %w", err)
	}
	return rec, nil
}

func (a *Appender) stamp(rec Record, now time.Time) Record {
	rec.Epoch = now.Unix()
	rec.Date = now.Format(dateLayout)
	rec.Year = now.Year()
	rec.Month = int(now.Month())
	rec.Day = now.Day()
	rec.Hour = now.Hour()
	rec.Timestamp = now.UTC().Format(time.RFC3339Nano)
	if rec.Time == "" {
		rec.Time = now.Format("15:04:05")
	}
	if rec.Operation == "" {
		rec.Operation = "unknown"
	}
	if rec.SessionID == "" {
		rec.SessionID = a.opts.SessionID
	}
	if rec.User == "" {
		rec.User = a.opts.User
	}
	if rec.Cwd == "" {
		rec.Cwd = a.opts.Cwd
	}
	if rec.Project == "" {
		rec.Project = a.opts.Project
	}
	rec.Prompt = truncatePrompt(rec.Prompt, a.opts.MaxPromptLength)
	return rec
}

func truncatePrompt(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// NewSessionID returns a fresh, time-sortable session identifier.
// Identifiers are opaque to the rest of the system and passed through unchanged.
func NewSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}
