package recovery

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/agentlog/internal/eventlog"
	"github.com/roach88/agentlog/internal/worklog"
)

// PayloadPrefix is the number of payload runes that take part in a
// fingerprint.
const PayloadPrefix = 100

// fingerprintKey is the BLAKE3 domain key for event fingerprints: the ASCII
// bytes of "agentlog.recovery.fingerprint.v1". Changing it changes every
// fingerprint, including the fingerprint column of already uploaded rows.
var fingerprintKey = [32]byte{
	'a', 'g', 'e', 'n', 't', 'l', 'o', 'g', '.', 'r', 'e', 'c', 'o', 'v', 'e', 'r',
	'y', '.', 'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', '.', 'v', '1',
}

// Fingerprint identifies a logical event by (timestamp, operation, first
// PayloadPrefix runes of payload, session id). Two events with equal
// fingerprints are the same event regardless of which file they came from.
//
// Operations compare case-insensitively. Inputs are NFC-normalized and length-prefixed before hashing. Timestamps
// that parse as RFC 3339 are compared as instants, so "Z" and "+00:00"
// spellings of the same time agree.
func Fingerprint(timestamp, operation, payload, sessionID string) string {
	h, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("recovery: blake3 keyed init: " + err.Error())
	}

	var lenBuf [binary.MaxVarintLen64]byte
	for _, field := range []string{
		canonicalTimestamp(timestamp),
		strings.ToLower(operation),
		prefix(payload, PayloadPrefix),
		sessionID,
	} {
		s := norm.NFC.String(field)
		n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
		h.Write(lenBuf[:n])
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FingerprintRecord fingerprints a raw log record, using its prompt as the
// payload.
func FingerprintRecord(rec eventlog.Record) string {
	return Fingerprint(rec.Timestamp, rec.Operation, rec.Prompt, rec.SessionID)
}

// FingerprintEntry fingerprints a work log entry, using its description as
// the payload. An entry converted from a record fingerprints the same as
// the record.
func FingerprintEntry(e worklog.Entry) string {
	return Fingerprint(e.Timestamp, e.Operation, e.Description, e.SessionID)
}

// sortLayout is fixed-width so canonical timestamps order lexically.
const sortLayout = "2006-01-02T15:04:05.000000000Z"

func canonicalTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format(sortLayout)
}

func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
