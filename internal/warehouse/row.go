package warehouse

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/roach88/agentlog/internal/eventlog"
	"github.com/roach88/agentlog/internal/recovery"
)

// MappingVersion identifies the record-to-row mapping below. Bump it
// whenever a column is added or a value derived differently; every row
// carries the version it was written with.
const MappingVersion = 2

// Columns is the fixed column order of the sink table. A row is keyed by
// (source_file, source_line); fingerprint is the content hash shared with
// the work log dedup and is not unique.
var Columns = []string{
	"fingerprint",
	"epoch",
	"log_date",
	"log_year",
	"log_month",
	"log_day",
	"log_hour",
	"timestamp_utc",
	"time_local",
	"operation",
	"prompt",
	"session_id",
	"cwd",
	"project",
	"details",
	"source_file",
	"source_line",
	"mapping_version",
}

// Row is one sink row. Nil pointers are SQL NULL.
type Row struct {
	Fingerprint    string  `json:"fingerprint"`
	Epoch          int64   `json:"epoch"`
	LogDate        string  `json:"log_date"`
	LogYear        int     `json:"log_year"`
	LogMonth       int     `json:"log_month"`
	LogDay         int     `json:"log_day"`
	LogHour        int     `json:"log_hour"`
	TimestampUTC   string  `json:"timestamp_utc"`
	TimeLocal      string  `json:"time_local"`
	Operation      string  `json:"operation"`
	Prompt         string  `json:"prompt"`
	SessionID      string  `json:"session_id"`
	Cwd            *string `json:"cwd"`
	Project        *string `json:"project"`
	Details        *string `json:"details"`
	SourceFile     string  `json:"source_file"`
	SourceLine     int     `json:"source_line"`
	MappingVersion int     `json:"mapping_version"`
}

// MapRecord converts a local event into its sink row. The row's identity is
// the source file and line the event was read from, so re-delivery of the
// same line is a no-op at the sink while distinct lines with equal content
// each get a row.
func MapRecord(ev eventlog.Event) (Row, error) {
	row := Row{
		Fingerprint:    recovery.FingerprintRecord(ev.Record),
		Epoch:          ev.Epoch,
		LogDate:        ev.Date,
		LogYear:        ev.Year,
		LogMonth:       ev.Month,
		LogDay:         ev.Day,
		LogHour:        ev.Hour,
		TimestampUTC:   ev.Timestamp,
		TimeLocal:      ev.Time,
		Operation:      ev.Operation,
		Prompt:         ev.Prompt,
		SessionID:      ev.SessionID,
		Cwd:            optional(ev.Cwd),
		Project:        optional(ev.Project),
		SourceFile:     filepath.Base(ev.Source),
		SourceLine:     ev.Line,
		MappingVersion: MappingVersion,
	}
	if len(ev.Details) > 0 {
		data, err := json.Marshal(ev.Details)
		if err != nil {
			return Row{}, fmt.Errorf("map record %s:%d: details: %w", ev.Source, ev.Line, err)
		}
		s := string(data)
		row.Details = &s
	}
	return row, nil
}

// values returns the row's column values in Columns order.
func (r Row) values() []any {
	return []any{
		r.Fingerprint,
		r.Epoch,
		r.LogDate,
		r.LogYear,
		r.LogMonth,
		r.LogDay,
		r.LogHour,
		r.TimestampUTC,
		r.TimeLocal,
		r.Operation,
		r.Prompt,
		r.SessionID,
		r.Cwd,
		r.Project,
		r.Details,
		r.SourceFile,
		r.SourceLine,
		r.MappingVersion,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
