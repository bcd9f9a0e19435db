package worklog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agentlog/internal/clock"
	"github.com/roach88/agentlog/internal/store"
)

func setupManager(t *testing.T, maxEntries int) (*Manager, *store.Store, *clock.FakeClock) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := clock.Fake(time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC))
	st, err := store.Open(t.TempDir(), store.Options{Clock: c, Logger: logger})
	require.NoError(t, err)
	m := New(st, Options{
		MaxEntries: maxEntries,
		Project:    "agentlog",
		Cwd:        "/src/agentlog",
		Clock:      c,
		Logger:     logger,
	})
	return m, st, c
}

func TestAppend_DropsInsignificant(t *testing.T) {
	m, st, _ := setupManager(t, 10)

	for _, op := range []string{"read", "glob", "grep", ""} {
		ok, err := m.Append(Entry{Operation: op, Description: "x"})
		require.NoError(t, err)
		assert.False(t, ok, op)
	}
	assert.Empty(t, m.Get())

	_, err := os.Stat(st.Path(store.WorkLog))
	assert.True(t, os.IsNotExist(err), "nothing written for dropped entries")
}

func TestAppend_Enriches(t *testing.T) {
	m, st, c := setupManager(t, 10)

	ok, err := m.Append(Entry{
		Operation:   "Bash",
		Description: strings.Repeat("x", 250),
		Details:     map[string]any{"command": "go test ./..."},
	})
	require.NoError(t, err)
	require.True(t, ok)

	got := m.Get()
	require.Len(t, got, 1)
	e := got[0]
	assert.Equal(t, "bash", e.Operation)
	assert.Equal(t, c.Now().Format(time.RFC3339Nano), e.Timestamp)
	assert.Equal(t, "08:00:00", e.LocalTime)
	assert.Len(t, e.Description, MaxDescriptionLength)
	assert.Equal(t, "agentlog", e.Project)
	assert.Equal(t, "/src/agentlog", e.Cwd)
	assert.Equal(t, "go test ./...", e.Details["command"])

	doc := st.Load(store.WorkLog)
	assert.Equal(t, 1, doc["entry_count"])
	assert.NotEmpty(t, doc["last_updated"])
}

func TestAppend_CallerContextWins(t *testing.T) {
	m, _, _ := setupManager(t, 10)
	_, err := m.Append(Entry{Operation: "edit", Project: "other", Cwd: "/tmp/other", SessionID: "s-9"})
	require.NoError(t, err)

	e := m.Get()[0]
	assert.Equal(t, "other", e.Project)
	assert.Equal(t, "/tmp/other", e.Cwd)
	assert.Equal(t, "s-9", e.SessionID)
}

func TestAppend_CapArchivesByQuarter(t *testing.T) {
	const max = 4
	m, st, c := setupManager(t, max)

	// Two entries in 2025Q4, one in 2026Q1, then four more in 2026Q2.
	stamps := []time.Time{
		time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC),
	}
	for i, ts := range stamps {
		c.Set(ts)
		_, err := m.Append(Entry{Operation: "write", Description: fmt.Sprintf("e%d", i)})
		require.NoError(t, err)
	}

	active := m.Get()
	require.Len(t, active, max)
	for i, e := range active {
		assert.Equal(t, fmt.Sprintf("e%d", i+3), e.Description)
	}
	assert.Equal(t, max, st.Load(store.WorkLog)["entry_count"])

	q4, err := st.Archive("2025Q4")
	require.NoError(t, err)
	require.Len(t, store.Entries(q4), 2)
	assert.Equal(t, "e0", FromMap(store.Entries(q4)[0].(map[string]any)).Description)
	assert.Equal(t, "e1", FromMap(store.Entries(q4)[1].(map[string]any)).Description)

	q1, err := st.Archive("2026Q1")
	require.NoError(t, err)
	require.Len(t, store.Entries(q1), 1)

	keys, err := st.Archives()
	require.NoError(t, err)
	assert.Equal(t, []string{"2025Q4", "2026Q1"}, keys)
}

func TestAppend_FullCap(t *testing.T) {
	if testing.Short() {
		t.Skip("writes 500+ entries")
	}
	m, st, c := setupManager(t, 0)
	require.Equal(t, DefaultMaxEntries, m.MaxEntries())

	const k = 7
	for i := 0; i < DefaultMaxEntries+k; i++ {
		c.Advance(time.Minute)
		_, err := m.Append(Entry{Operation: "bash", Description: fmt.Sprintf("cmd %d", i)})
		require.NoError(t, err)
	}

	active := m.Get()
	require.Len(t, active, DefaultMaxEntries)
	assert.Equal(t, fmt.Sprintf("cmd %d", k), active[0].Description)
	assert.Equal(t, fmt.Sprintf("cmd %d", DefaultMaxEntries+k-1), active[len(active)-1].Description)

	archived, err := st.Archive("2026Q1")
	require.NoError(t, err)
	assert.Len(t, store.Entries(archived), k)
}

func TestAppend_UnparseableTimestampArchivedAsUnknown(t *testing.T) {
	m, st, _ := setupManager(t, 1)

	_, err := m.Append(Entry{Operation: "task", Timestamp: "last tuesday"})
	require.NoError(t, err)
	_, err = m.Append(Entry{Operation: "task"})
	require.NoError(t, err)

	doc, err := st.Archive(UnknownQuarter)
	require.NoError(t, err)
	require.Len(t, store.Entries(doc), 1)
	assert.Len(t, m.Get(), 1)
}

func TestAppend_ArchiveFailureDoesNotBlock(t *testing.T) {
	m, st, _ := setupManager(t, 1)

	archiveDir := filepath.Join(st.Dir(), "archive")
	require.NoError(t, os.RemoveAll(archiveDir))
	require.NoError(t, os.WriteFile(archiveDir, []byte("not a dir"), 0o644))

	_, err := m.Append(Entry{Operation: "edit", Description: "first"})
	require.NoError(t, err)
	_, err = m.Append(Entry{Operation: "edit", Description: "second"})
	require.NoError(t, err)

	active := m.Get()
	require.Len(t, active, 1)
	assert.Equal(t, "second", active[0].Description)
}

func TestAppend_FailedSaveLeavesArchivesUntouched(t *testing.T) {
	m, st, _ := setupManager(t, 1)

	_, err := m.Append(Entry{Operation: "edit", Description: "first"})
	require.NoError(t, err)

	// The work log is critical, so a save that cannot take its backup fails.
	backupDir := filepath.Join(st.Dir(), "backups")
	require.NoError(t, os.RemoveAll(backupDir))
	require.NoError(t, os.WriteFile(backupDir, []byte("not a dir"), 0o644))

	_, err = m.Append(Entry{Operation: "edit", Description: "second"})
	require.Error(t, err)
	keys, err := st.Archives()
	require.NoError(t, err)
	assert.Empty(t, keys, "nothing is archived when the active log was not saved")

	require.NoError(t, os.Remove(backupDir))
	require.NoError(t, os.Mkdir(backupDir, 0o755))
	_, err = m.Append(Entry{Operation: "edit", Description: "third"})
	require.NoError(t, err)

	archived, err := st.Archive("2026Q1")
	require.NoError(t, err)
	entries := store.Entries(archived)
	require.Len(t, entries, 1, "overflow is archived exactly once")
	assert.Equal(t, "first", entries[0].(map[string]any)["description"])
	active := m.Get()
	require.Len(t, active, 1)
	assert.Equal(t, "third", active[0].Description)
}

func TestForProject(t *testing.T) {
	m, _, _ := setupManager(t, 10)
	for _, e := range []Entry{
		{Operation: "bash", Project: "AgentLog", Cwd: "/a"},
		{Operation: "bash", Project: "other", Cwd: "/home/me/agentlog/sub"},
		{Operation: "bash", Project: "other", Cwd: "/home/me/other"},
	} {
		_, err := m.Append(e)
		require.NoError(t, err)
	}

	assert.Len(t, m.ForProject("agentlog"), 2)
	assert.Len(t, m.ForProject("OTHER"), 2)
	assert.Len(t, m.ForProject(""), 3)
	assert.Empty(t, m.ForProject("missing"))
}

func TestMatchesProject(t *testing.T) {
	assert.True(t, MatchesProject("AgentLog", "", "agentlog"))
	assert.True(t, MatchesProject("", "/home/me/AgentLog/cmd", "agentlog"))
	assert.True(t, MatchesProject("x", "/y", ""))
	assert.False(t, MatchesProject("agentlog-web", "/srv/web", "agentlog"))
}

func TestReplace_AppliesCapAndKeepsExtraKeys(t *testing.T) {
	m, st, _ := setupManager(t, 2)

	entries := []Entry{
		{Timestamp: "2026-01-01T00:00:00Z", Operation: "bash", Description: "a"},
		{Timestamp: "2026-01-02T00:00:00Z", Operation: "bash", Description: "b", Extra: map[string]any{"source": "recovery"}},
		{Timestamp: "2026-01-03T00:00:00Z", Operation: "bash", Description: "c"},
	}
	require.NoError(t, m.Replace(entries))

	active := m.Get()
	require.Len(t, active, 2)
	assert.Equal(t, "b", active[0].Description)
	assert.Equal(t, "recovery", active[0].Extra["source"])

	archived, err := st.Archive("2026Q1")
	require.NoError(t, err)
	assert.Len(t, store.Entries(archived), 1)
}

func TestQuarterKey(t *testing.T) {
	tests := map[string]string{
		"2026-01-01T00:00:00Z":           "2026Q1",
		"2026-03-31T23:59:59.5Z":         "2026Q1",
		"2026-04-01T00:00:00Z":           "2026Q2",
		"2026-09-30T10:00:00+02:00":      "2026Q3",
		"2026-12-31T23:00:00-05:00":      "2026Q4",
		"2026-10-01T00:30:00.123456789Z": "2026Q4",
	}
	for ts, want := range tests {
		got, ok := QuarterKey(ts)
		require.True(t, ok, ts)
		assert.Equal(t, want, got, ts)
	}

	_, ok := QuarterKey("2026-01-01")
	assert.False(t, ok)
	_, ok = QuarterKey("")
	assert.False(t, ok)
}

func TestEntryMapRoundTrip(t *testing.T) {
	e := Entry{
		Timestamp:   "2026-01-01T00:00:00Z",
		LocalTime:   "01:00:00",
		Operation:   "edit",
		Description: "d",
		Cwd:         "/x",
		Details:     map[string]any{"file_path": "/x/y.go"},
		Extra:       map[string]any{"source_file": "agent-activity-2026-01-01.log"},
	}
	m := e.ToMap()
	_, hasProject := m["project"]
	assert.False(t, hasProject)
	assert.Equal(t, e, FromMap(m))
}
