package testutil

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agentlog/internal/eventlog"
)

func TestSessionIDs(t *testing.T) {
	var ids SessionIDs
	assert.Equal(t, "test-session-0001", ids.Next())
	assert.Equal(t, "test-session-0002", ids.Next())
	ids.Reset()
	assert.Equal(t, "test-session-0001", ids.Next())
}

func TestSessionIDs_Concurrent(t *testing.T) {
	var ids SessionIDs
	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(ids.Next(), true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
}

func TestWriteLog(t *testing.T) {
	day := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	dir := t.TempDir()
	path := WriteLog(t, dir, day,
		Record(day, "bash", "ls", "s1"),
		Record(day.Add(time.Second), "edit", "x", "s1"),
	)

	events, skipped, err := eventlog.ReadFile(path)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, events, 2)
	assert.Equal(t, "2026-02-03T04:05:06Z", events[0].Timestamp)
	assert.Equal(t, 4, events[0].Hour)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), FileSize(t, path))
}
