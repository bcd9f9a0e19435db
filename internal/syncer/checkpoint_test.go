package syncer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agentlog/internal/eventlog"
	"github.com/roach88/agentlog/internal/testutil"
)

func TestLoadCheckpoint_Missing(t *testing.T) {
	cp, err := LoadCheckpoint(filepath.Join(t.TempDir(), CheckpointFile), testutil.Logger())
	require.NoError(t, err)
	assert.Equal(t, Checkpoint{}, cp)
}

func TestLoadCheckpoint_CorruptStartsFresh(t *testing.T) {
	for name, content := range map[string]string{
		"garbage":  "{not json",
		"negative": `{"last_file":"x","last_position":-4}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), CheckpointFile)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			cp, err := LoadCheckpoint(path, testutil.Logger())
			require.NoError(t, err)
			assert.Equal(t, Checkpoint{}, cp)
		})
	}
}

func TestCheckpoint_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), CheckpointFile)
	cp := Checkpoint{
		LastFile:     "/logs/agent-activity-2026-03-14.log",
		LastPosition: 512,
		LastLine:     4,
		LastEpoch:    1773480600,
		LastSyncTime: "2026-03-14T09:31:00Z",
		TotalSynced:  40,
	}
	require.NoError(t, cp.Save(path))

	back, err := LoadCheckpoint(path, nil)
	require.NoError(t, err)
	assert.Equal(t, cp, back)
	assert.Equal(t, eventlog.Position{File: cp.LastFile, Offset: 512, Line: 4}, back.Position())
}

func TestCheckpoint_Advance(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.FixedZone("X", 3600))
	cp := Checkpoint{TotalSynced: 5, LastEpoch: 10}

	delivered := []eventlog.Event{
		{Record: eventlog.Record{Epoch: 11}},
		{Record: eventlog.Record{Epoch: 12}},
	}
	cp.Advance(eventlog.Position{File: "/l/a.log", Offset: 99, Line: 7}, delivered, at)

	assert.Equal(t, "/l/a.log", cp.LastFile)
	assert.Equal(t, int64(99), cp.LastPosition)
	assert.Equal(t, 7, cp.LastLine)
	assert.Equal(t, int64(12), cp.LastEpoch)
	assert.Equal(t, int64(7), cp.TotalSynced)
	assert.Equal(t, "2026-03-14T09:00:00Z", cp.LastSyncTime)

	cp.Advance(eventlog.Position{File: "/l/a.log", Offset: 120, Line: 8}, nil, at.Add(time.Hour))
	assert.Equal(t, int64(120), cp.LastPosition)
	assert.Equal(t, int64(7), cp.TotalSynced, "position-only advance delivers nothing")
	assert.Equal(t, "2026-03-14T09:00:00Z", cp.LastSyncTime)
}
