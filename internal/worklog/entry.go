package worklog

import (
	"fmt"
	"strings"
	"time"
)

// MaxDescriptionLength is the rune limit for Entry.Description.
const MaxDescriptionLength = 200

// significant lists the operation kinds that reach the work log.
var significant = map[string]bool{
	"write":       true,
	"edit":        true,
	"task":        true,
	"bash":        true,
	"todo_write":  true,
	"ask_user":    true,
	"user_prompt": true,
}

// IsSignificant reports whether op is on the work log allow-list.
// Matching ignores case.
func IsSignificant(op string) bool {
	return significant[strings.ToLower(op)]
}

// Entry is one work log entry.
type Entry struct {
	Timestamp   string
	LocalTime   string
	Operation   string
	Description string
	Project     string
	Cwd         string
	SessionID   string
	Details     map[string]any

	// Extra holds keys this package does not know about, so entries
	// written by other tools survive a rewrite.
	Extra map[string]any
}

// Time parses the entry timestamp.
func (e Entry) Time() (time.Time, bool) {
	return ParseTimestamp(e.Timestamp)
}

// ParseTimestamp parses an RFC 3339 timestamp as written into entries.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// QuarterKey returns the archive key ("2026Q1") for an entry timestamp, or
// false if the timestamp does not parse. The quarter is taken in the
// timestamp's own offset.
func QuarterKey(timestamp string) (string, bool) {
	t, ok := ParseTimestamp(timestamp)
	if !ok {
		return "", false
	}
	q := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%dQ%d", t.Year(), q), true
}

// ToMap converts e to its document form. Empty optional fields are omitted.
func (e Entry) ToMap() map[string]any {
	m := make(map[string]any, len(e.Extra)+8)
	for k, v := range e.Extra {
		m[k] = v
	}
	m["timestamp"] = e.Timestamp
	m["local_time"] = e.LocalTime
	m["operation"] = e.Operation
	m["description"] = e.Description
	putString(m, "project", e.Project)
	putString(m, "cwd", e.Cwd)
	putString(m, "session_id", e.SessionID)
	if len(e.Details) > 0 {
		m["details"] = e.Details
	}
	return m
}

// FromMap converts a document entry back into an Entry.
func FromMap(m map[string]any) Entry {
	e := Entry{
		Timestamp:   stringField(m, "timestamp"),
		LocalTime:   stringField(m, "local_time"),
		Operation:   stringField(m, "operation"),
		Description: stringField(m, "description"),
		Project:     stringField(m, "project"),
		Cwd:         stringField(m, "cwd"),
		SessionID:   stringField(m, "session_id"),
	}
	if d, ok := m["details"].(map[string]any); ok {
		e.Details = d
	}
	for k, v := range m {
		if knownKeys[k] {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		e.Extra[k] = v
	}
	return e
}

var knownKeys = map[string]bool{
	"timestamp": true, "local_time": true, "operation": true, "description": true,
	"project": true, "cwd": true, "session_id": true, "details": true,
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// TruncateDescription cuts s to MaxDescriptionLength runes.
func TruncateDescription(s string) string {
	r := []rune(s)
	if len(r) <= MaxDescriptionLength {
		return s
	}
	return string(r[:MaxDescriptionLength])
}
