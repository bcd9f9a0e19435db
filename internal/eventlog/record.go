package eventlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/agentlog/internal/faults"
)

// Record is one captured agent event, stored as a single JSON line.
// Records are immutable once written.
type Record struct {
	Epoch     int64          `json:"epoch"`
	Date      string         `json:"date,omitempty"`
	Year      int            `json:"year,omitempty"`
	Month     int            `json:"month,omitempty"`
	Day       int            `json:"day,omitempty"`
	Hour      int            `json:"hour"`
	Timestamp string         `json:"timestamp"`
	Time      string         `json:"time,omitempty"`
	Operation string         `json:"operation"`
	Prompt    string         `json:"prompt"`
	SessionID string         `json:"session_id"`
	User      string         `json:"user,omitempty"`
	Cwd       string         `json:"cwd,omitempty"`
	Project   string         `json:"project,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Result    string         `json:"result,omitempty"`
}

// Event is a Record together with where it was read from.
type Event struct {
	Record

	// Source is the base name of the log file the record came from.
	Source string

	// Line is the 1-based line number of the record within Source.
	Line int
}

var errNotObject = errors.New("record is not a JSON object")

// ParseRecord decodes a single log line. Surrounding whitespace is ignored.
// Failures are classified as faults.KindParseSkip.
func ParseRecord(line []byte) (Record, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, faults.ParseSkip("parse record", errNotObject)
	}
	var rec Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return Record{}, faults.ParseSkip("parse record", err)
	}
	return rec, nil
}

// MarshalLine encodes rec as a JSON line terminated by a newline.
func MarshalLine(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return append(data, '\n'), nil
}
