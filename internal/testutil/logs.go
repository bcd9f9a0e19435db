// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/agentlog/internal/eventlog"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Record builds a raw log record stamped at ts.
func Record(ts time.Time, op, prompt, session string) eventlog.Record {
	return eventlog.Record{
		Epoch:     ts.Unix(),
		Date:      ts.Format("2006-01-02"),
		Year:      ts.Year(),
		Month:     int(ts.Month()),
		Day:       ts.Day(),
		Hour:      ts.Hour(),
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		Time:      ts.Format("15:04:05"),
		Operation: op,
		Prompt:    prompt,
		SessionID: session,
	}
}

// WriteLog appends recs to the daily log file for day in dir and returns
// the file path.
func WriteLog(t testing.TB, dir string, day time.Time, recs ...eventlog.Record) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, eventlog.FileName(day))
	for _, rec := range recs {
		line, err := eventlog.MarshalLine(rec)
		require.NoError(t, err)
		AppendRaw(t, path, string(line))
	}
	return path
}

// AppendRaw appends s to path verbatim, creating the file if needed.
func AppendRaw(t testing.TB, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(s)
	require.NoError(t, err)
}

// FileSize returns the size of path.
func FileSize(t testing.TB, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}
