package eventlog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agentlog/internal/clock"
	"github.com/roach88/agentlog/internal/faults"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
		wantOp  string
	}{
		{name: "valid", line: `{"operation":"bash","prompt":"ls","timestamp":"2026-03-14T09:30:00Z"}`, wantOp: "bash"},
		{name: "surrounding whitespace", line: "  {\"operation\":\"edit\"}\r\n", wantOp: "edit"},
		{name: "unknown fields ignored", line: `{"operation":"task","extra":[1,2]}`, wantOp: "task"},
		{name: "empty", line: "", wantErr: true},
		{name: "array", line: `[1,2,3]`, wantErr: true},
		{name: "scalar", line: `"bash"`, wantErr: true},
		{name: "truncated", line: `{"operation":"bash"`, wantErr: true},
		{name: "wrong type", line: `{"epoch":"yesterday"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseRecord([]byte(tt.line))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, faults.IsParseSkip(err), "expected parse-skip, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOp, rec.Operation)
		})
	}
}

func TestMarshalLine_SingleLine(t *testing.T) {
	rec := Record{
		Operation: "bash",
		Prompt:    "echo 'a\nb'",
		Details:   map[string]any{"command": "line1\nline2"},
	}
	line, err := MarshalLine(rec)
	require.NoError(t, err)

	assert.True(t, bytes.HasSuffix(line, []byte{'\n'}))
	assert.Equal(t, 1, bytes.Count(line, []byte{'\n'}), "embedded newlines must be escaped")

	back, err := ParseRecord(line)
	require.NoError(t, err)
	assert.Equal(t, rec.Prompt, back.Prompt)
}

func TestFileName(t *testing.T) {
	day := time.Date(2026, 1, 5, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "agent-activity-2026-01-05.log", FileName(day))

	date, ok := ParseFileName("/var/log/agent-activity-2026-01-05.log")
	require.True(t, ok)
	assert.Equal(t, "2026-01-05", date)

	for _, bad := range []string{
		"agent-activity-2026-13-05.log",
		"agent-activity-latest.log",
		"activity-2026-01-05.log",
		"agent-activity-2026-01-05.log.gz",
	} {
		_, ok := ParseFileName(bad)
		assert.False(t, ok, bad)
	}
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-02", WindowStart(now, 0))
	assert.Equal(t, "2026-02-23", WindowStart(now, 7))
	assert.Equal(t, "2025-12-02", WindowStart(now, 90))
}

func TestAppender_StampsAndAppends(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 14, 9, 30, 15, 0, time.UTC)
	a, err := NewAppender(dir, AppenderOptions{
		Clock:     clock.Fake(now),
		SessionID: "sess-1",
		User:      "dev",
		Project:   "agentlog",
	})
	require.NoError(t, err)

	rec, err := a.Append(Record{Operation: "bash", Prompt: "go test"})
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), rec.Epoch)
	assert.Equal(t, "2026-03-14", rec.Date)
	assert.Equal(t, 9, rec.Hour)
	assert.Equal(t, "09:30:15", rec.Time)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, "agentlog", rec.Project)

	_, err = a.Append(Record{Prompt: "no op", SessionID: "other"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "agent-activity-2026-03-14.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)

	second, err := ParseRecord([]byte(lines[1]))
	require.NoError(t, err)
	assert.Equal(t, "unknown", second.Operation)
	assert.Equal(t, "other", second.SessionID)
}

func TestAppender_TruncatesPrompt(t *testing.T) {
	a, err := NewAppender(t.TempDir(), AppenderOptions{
		Clock:           clock.Fake(time.Now()),
		MaxPromptLength: 10,
	})
	require.NoError(t, err)

	rec, err := a.Append(Record{Operation: "user_prompt", Prompt: strings.Repeat("é", 25)})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 10)+"...", rec.Prompt)
	assert.NotEmpty(t, a.SessionID())
}

func TestListFilesAndReadFile(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"2026-03-12", "2026-03-13", "2026-03-14"} {
		path := filepath.Join(dir, FilePrefix+d+FileSuffix)
		writeLines(t, path, recordLine("bash", d, 1))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	all, err := ListFiles(dir, "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "agent-activity-2026-03-12.log", filepath.Base(all[0]))

	ranged, err := ListFiles(dir, "2026-03-13", "2026-03-13")
	require.NoError(t, err)
	require.Len(t, ranged, 1)

	writeLines(t, ranged[0], "garbage\n", "{\"operation\":\"edit\"}")
	events, skipped, err := ReadFile(ranged[0])
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, events, 1, "unterminated trailing line is not read")
	assert.Equal(t, "2026-03-13", events[0].Prompt)

	missing, err := ListFiles(filepath.Join(dir, "nope"), "", "")
	require.NoError(t, err)
	assert.Empty(t, missing)
}
