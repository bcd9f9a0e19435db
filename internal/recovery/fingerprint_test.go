package recovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/agentlog/internal/eventlog"
	"github.com/roach88/agentlog/internal/worklog"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("2026-03-14T09:30:00Z", "bash", "go test", "s1")
	b := Fingerprint("2026-03-14T09:30:00Z", "bash", "go test", "s1")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_FieldsMatter(t *testing.T) {
	base := Fingerprint("2026-03-14T09:30:00Z", "bash", "go test", "s1")
	assert.NotEqual(t, base, Fingerprint("2026-03-14T09:30:01Z", "bash", "go test", "s1"))
	assert.NotEqual(t, base, Fingerprint("2026-03-14T09:30:00Z", "edit", "go test", "s1"))
	assert.NotEqual(t, base, Fingerprint("2026-03-14T09:30:00Z", "bash", "go vet", "s1"))
	assert.NotEqual(t, base, Fingerprint("2026-03-14T09:30:00Z", "bash", "go test", "s2"))
}

func TestFingerprint_FieldBoundaries(t *testing.T) {
	assert.NotEqual(t,
		Fingerprint("t", "ab", "c", ""),
		Fingerprint("t", "a", "bc", ""),
	)
}

func TestFingerprint_OnlyPayloadPrefixCounts(t *testing.T) {
	head := strings.Repeat("ü", PayloadPrefix)
	assert.Equal(t,
		Fingerprint("t", "bash", head+" first tail", "s"),
		Fingerprint("t", "bash", head+" second tail", "s"),
	)
	assert.NotEqual(t,
		Fingerprint("t", "bash", head[:len(head)-2]+"x", "s"),
		Fingerprint("t", "bash", head, "s"),
	)
}

func TestFingerprint_Normalization(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"
	assert.Equal(t,
		Fingerprint("t", "edit", composed, "s"),
		Fingerprint("t", "edit", decomposed, "s"),
	)

	assert.Equal(t,
		Fingerprint("2026-03-14T09:30:00Z", "Bash", "p", "s"),
		Fingerprint("2026-03-14T10:30:00+01:00", "bash", "p", "s"),
	)
}

func TestFingerprint_RecordAndConvertedEntryAgree(t *testing.T) {
	rec := eventlog.Record{
		Timestamp: "2026-03-14T09:30:00Z",
		Operation: "write",
		Prompt:    strings.Repeat("p", 300),
		SessionID: "s1",
	}
	entry := toEntry(eventlog.Event{Record: rec}, "")
	assert.Len(t, entry.Description, worklog.MaxDescriptionLength)
	assert.Equal(t, FingerprintRecord(rec), FingerprintEntry(entry))
}
