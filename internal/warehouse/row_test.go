package warehouse

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agentlog/internal/eventlog"
	"github.com/roach88/agentlog/internal/recovery"
)

func sampleEvents() []eventlog.Event {
	return []eventlog.Event{
		{
			Record: eventlog.Record{
				Epoch:     1773480600,
				Date:      "2026-03-14",
				Year:      2026,
				Month:     3,
				Day:       14,
				Hour:      9,
				Timestamp: "2026-03-14T09:30:00Z",
				Time:      "09:30:00",
				Operation: "bash",
				Prompt:    "go test ./...",
				SessionID: "s-1",
				Cwd:       "/work/agentlog",
				Project:   "agentlog",
				Details:   map[string]any{"command": "go test ./..."},
			},
			Source: "/logs/agent-activity-2026-03-14.log",
			Line:   1,
		},
		{
			Record: eventlog.Record{
				Epoch:     1773480660,
				Date:      "2026-03-14",
				Year:      2026,
				Month:     3,
				Day:       14,
				Hour:      9,
				Timestamp: "2026-03-14T09:31:00Z",
				Time:      "09:31:00",
				Operation: "user_prompt",
				Prompt:    "add a retry",
				SessionID: "s-1",
			},
			Source: "agent-activity-2026-03-14.log",
			Line:   2,
		},
	}
}

func TestMapRecord_Golden(t *testing.T) {
	events := sampleEvents()
	rows := make([]Row, len(events))
	for i, ev := range events {
		row, err := MapRecord(ev)
		require.NoError(t, err)
		assert.Equal(t, recovery.FingerprintRecord(ev.Record), row.Fingerprint)
		row.Fingerprint = "FINGERPRINT"
		rows[i] = row
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "row_mapping", append(data, '\n'))
}

func TestMapRecord_ValuesMatchColumns(t *testing.T) {
	row, err := MapRecord(sampleEvents()[0])
	require.NoError(t, err)
	assert.Len(t, row.values(), len(Columns))
}

func TestMapRecord_FingerprintIgnoresSource(t *testing.T) {
	ev := sampleEvents()[0]
	a, err := MapRecord(ev)
	require.NoError(t, err)

	ev.Source = "elsewhere.log"
	ev.Line = 99
	b, err := MapRecord(ev)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, "elsewhere.log", b.SourceFile)
	assert.Equal(t, 99, b.SourceLine)

	ev.Prompt = "different"
	c, err := MapRecord(ev)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
}

func TestMapRecord_UnmarshalableDetails(t *testing.T) {
	ev := sampleEvents()[0]
	ev.Details = map[string]any{"fn": func() {}}
	_, err := MapRecord(ev)
	require.Error(t, err)
}
