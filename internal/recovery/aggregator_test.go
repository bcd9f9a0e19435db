package recovery

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agentlog/internal/clock"
	"github.com/roach88/agentlog/internal/store"
	"github.com/roach88/agentlog/internal/testutil"
	"github.com/roach88/agentlog/internal/worklog"
)

type aggFixture struct {
	agg   *Aggregator
	store *store.Store
	wl    *worklog.Manager
	logs  string
	clock *clock.FakeClock
	day   time.Time
}

func setupAggregator(t *testing.T, maxEntries int) aggFixture {
	t.Helper()
	logger := testutil.Logger()
	c := clock.Fake(time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC))
	st, err := store.Open(t.TempDir(), store.Options{Clock: c, Logger: logger})
	require.NoError(t, err)
	wl := worklog.New(st, worklog.Options{MaxEntries: maxEntries, Clock: c, Logger: logger})
	return aggFixture{
		agg:   NewAggregator(st, wl, c, logger),
		store: st,
		wl:    wl,
		logs:  t.TempDir(),
		clock: c,
		day:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func (f aggFixture) seed(t *testing.T) {
	t.Helper()
	var ids testutil.SessionIDs
	s1 := ids.Next()
	testutil.WriteLog(t, f.logs, f.day,
		testutil.Record(f.day, "bash", "go build", s1),
		testutil.Record(f.day.Add(time.Minute), "read", "cat go.mod", s1),
		testutil.Record(f.day.Add(2*time.Minute), "edit", "fix import", s1),
	)
	next := f.day.Add(24 * time.Hour)
	path := testutil.WriteLog(t, f.logs, next,
		testutil.Record(next, "write", "new file", s1),
		testutil.Record(next, "write", "new file", s1),
	)
	testutil.AppendRaw(t, path, "{broken\n")
}

func TestRecover_DryRunWritesNothing(t *testing.T) {
	f := setupAggregator(t, 0)
	f.seed(t)

	res, err := f.agg.Recover(Options{Dirs: []string{f.logs}, DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Len(t, res.Files, 2)
	assert.Len(t, res.Imported, 3)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Insignificant)
	assert.Equal(t, 1, res.Malformed)

	_, err = os.Stat(f.store.Path(store.WorkLog))
	assert.True(t, os.IsNotExist(err))
}

func TestRecover_ImportsOnceAndBacksUp(t *testing.T) {
	f := setupAggregator(t, 0)
	_, err := f.wl.Append(worklog.Entry{Operation: "task", Description: "already here"})
	require.NoError(t, err)
	f.seed(t)

	f.clock.Advance(time.Second)
	res, err := f.agg.Recover(Options{Dirs: []string{f.logs, f.logs}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Existing)
	assert.Len(t, res.Imported, 3)

	entries := f.wl.Get()
	require.Len(t, entries, 4)
	assert.Equal(t, "go build", entries[0].Description)
	assert.Equal(t, "already here", entries[3].Description, "clock time is after the log day")

	doc := f.store.Load(store.WorkLog)
	lastRecovery, ok := doc["last_recovery"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3, lastRecovery["entries_recovered"])
	assert.Equal(t, 2, lastRecovery["source_files"])

	backups, err := f.store.Backups(store.WorkLog)
	require.NoError(t, err)
	assert.Len(t, backups, 1, "the pre-recovery work log is backed up")

	f.clock.Advance(time.Second)
	again, err := f.agg.Recover(Options{Dirs: []string{f.logs}})
	require.NoError(t, err)
	assert.Empty(t, again.Imported)
	assert.Equal(t, 4, again.Duplicates)
	assert.Len(t, f.wl.Get(), 4)
}

func TestRecover_ArchivedEntriesAreNotReimported(t *testing.T) {
	f := setupAggregator(t, 2)
	f.seed(t)

	res, err := f.agg.Recover(Options{Dirs: []string{f.logs}})
	require.NoError(t, err)
	require.Len(t, res.Imported, 3)
	assert.Len(t, f.wl.Get(), 2)

	again, err := f.agg.Recover(Options{Dirs: []string{f.logs}})
	require.NoError(t, err)
	assert.Empty(t, again.Imported)

	archived, err := f.store.Archive("2026Q1")
	require.NoError(t, err)
	assert.Len(t, store.Entries(archived), 1)
}

func TestRecover_DateRange(t *testing.T) {
	f := setupAggregator(t, 0)
	f.seed(t)

	res, err := f.agg.Recover(Options{Dirs: []string{f.logs}, From: "2026-03-15", DryRun: true})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "agent-activity-2026-03-15.log", filepath.Base(res.Files[0]))
	assert.Len(t, res.Imported, 1)
}

func TestRecover_DaysBack(t *testing.T) {
	f := setupAggregator(t, 0)
	f.seed(t)

	res, err := f.agg.Recover(Options{Dirs: []string{f.logs}, DaysBack: 5, DryRun: true})
	require.NoError(t, err)
	require.Len(t, res.Files, 1, "the window starts 2026-03-15")
	assert.Equal(t, "agent-activity-2026-03-15.log", filepath.Base(res.Files[0]))

	res, err = f.agg.Recover(Options{Dirs: []string{f.logs}, DaysBack: 5, From: "2026-03-14", DryRun: true})
	require.NoError(t, err)
	assert.Len(t, res.Files, 2, "an explicit From wins over DaysBack")

	st, err := f.agg.Stats(Options{Dirs: []string{f.logs}, DaysBack: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Files)
}

func TestStats(t *testing.T) {
	f := setupAggregator(t, 0)
	f.seed(t)

	st, err := f.agg.Stats(Options{Dirs: []string{f.logs, filepath.Join(f.logs, "missing")}})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Files)
	assert.Equal(t, "2026-03-14", st.FirstDate)
	assert.Equal(t, "2026-03-15", st.LastDate)
	assert.Equal(t, 5, st.Total)
	assert.Equal(t, 4, st.Significant)
	assert.Equal(t, 1, st.Malformed)
	assert.Equal(t, map[string]int{"bash": 1, "read": 1, "edit": 1, "write": 2}, st.ByOperation)
	assert.Equal(t, map[string]int{"unknown": 4}, st.ByProject)
	assert.Equal(t, 0, st.Existing)
	assert.Equal(t, 3, st.PotentialNew)
}

func TestScan_OrdersByDate(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	d1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.Add(24 * time.Hour)
	testutil.WriteLog(t, b, d1, testutil.Record(d1, "bash", "x", "s"))
	testutil.WriteLog(t, a, d2, testutil.Record(d2, "bash", "y", "s"))
	testutil.WriteLog(t, a, d1, testutil.Record(d1, "bash", "z", "s"))

	files, err := Scan([]string{a, b}, "", "")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "agent-activity-2026-03-01.log", filepath.Base(files[0]))
	assert.Equal(t, "agent-activity-2026-03-01.log", filepath.Base(files[1]))
	assert.Equal(t, "agent-activity-2026-03-02.log", filepath.Base(files[2]))
}
