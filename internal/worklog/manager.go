package worklog

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/roach88/agentlog/internal/clock"
	"github.com/roach88/agentlog/internal/store"
)

// DefaultMaxEntries is the cap on active work log entries.
const DefaultMaxEntries = 500

// UnknownQuarter is the archive key for overflow entries whose timestamp
// does not parse.
const UnknownQuarter = "unknown"

// Options configures a Manager. Zero values select defaults.
type Options struct {
	MaxEntries int

	// Project and Cwd are stamped on entries that carry none.
	Project string
	Cwd     string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Manager maintains the bounded, chronological work log on top of the
// record store. Overflow beyond MaxEntries is moved into per-quarter
// archives, never dropped.
type Manager struct {
	store      *store.Store
	maxEntries int
	project    string
	cwd        string
	clock      clock.Clock
	logger     *slog.Logger
}

// New returns a Manager over st.
func New(st *store.Store, opts Options) *Manager {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		store:      st,
		maxEntries: opts.MaxEntries,
		project:    opts.Project,
		cwd:        opts.Cwd,
		clock:      opts.Clock,
		logger:     opts.Logger.With("component", "worklog"),
	}
}

// MaxEntries returns the active entry cap.
func (m *Manager) MaxEntries() int {
	return m.maxEntries
}

// Append records e if its operation is significant and reports whether it
// was accepted. Missing timestamp, local time, project and cwd are filled
// in; the description is truncated to MaxDescriptionLength runes.
func (m *Manager) Append(e Entry) (bool, error) {
	if !IsSignificant(e.Operation) {
		return false, nil
	}
	e = m.enrich(e)

	doc, recovered := m.store.LoadStatus(store.WorkLog)
	if recovered {
		m.logger.Warn("work log was recovered from backup")
	}

	entries := append(store.Entries(doc), e.ToMap())
	if err := m.write(doc, entries); err != nil {
		return true, err
	}
	return true, nil
}

// Get returns the active (non-archived) entries, oldest first.
func (m *Manager) Get() []Entry {
	return toEntries(store.Entries(m.store.Load(store.WorkLog)))
}

// ForProject returns the active entries whose project equals project
// (ignoring case) or whose cwd contains it.
func (m *Manager) ForProject(project string) []Entry {
	if project == "" {
		return m.Get()
	}
	var out []Entry
	for _, e := range m.Get() {
		if MatchesProject(e.Project, e.Cwd, project) {
			out = append(out, e)
		}
	}
	return out
}

// MatchesProject reports whether an event stamped with project and cwd
// belongs to filter: the project equals it ignoring case, or the cwd
// contains it. An empty filter matches everything.
func MatchesProject(project, cwd, filter string) bool {
	if filter == "" {
		return true
	}
	want := strings.ToLower(filter)
	return strings.ToLower(project) == want || strings.Contains(strings.ToLower(cwd), want)
}

// Replace rewrites the active log with entries, applying the cap. Entries
// beyond the cap are archived exactly as in Append. The caller is
// responsible for ordering.
func (m *Manager) Replace(entries []Entry) error {
	return m.Restore(entries, nil)
}

// Restore is Replace for a rebuild from the raw log: it also records
// lastRecovery under the document's last_recovery key when non-nil.
func (m *Manager) Restore(entries []Entry, lastRecovery map[string]any) error {
	doc := m.store.Load(store.WorkLog)
	if lastRecovery != nil {
		doc["last_recovery"] = lastRecovery
	}
	raw := make([]any, len(entries))
	for i, e := range entries {
		raw[i] = e.ToMap()
	}
	return m.write(doc, raw)
}

func (m *Manager) write(doc store.Document, entries []any) error {
	overflow, kept := m.splitCap(entries)
	doc["entries"] = kept
	doc["entry_count"] = len(kept)
	doc["last_updated"] = m.clock.Now().UTC().Format(time.RFC3339Nano)
	if err := m.store.Save(store.WorkLog, doc); err != nil {
		return err
	}
	if len(overflow) > 0 {
		m.archive(overflow)
	}
	return nil
}

// splitCap separates the oldest entries beyond the cap from the retained
// tail. Overflow is archived only once the tail has been saved, so a failed
// save leaves the archives untouched.
func (m *Manager) splitCap(entries []any) (overflow, kept []any) {
	excess := len(entries) - m.maxEntries
	if excess <= 0 {
		return nil, entries
	}
	kept = make([]any, m.maxEntries)
	copy(kept, entries[excess:])
	return entries[:excess], kept
}

// archive groups overflow by calendar quarter and appends each group to
// its archive. Failures are logged; they never block the active log write.
func (m *Manager) archive(overflow []any) {
	groups := make(map[string][]any)
	for _, raw := range overflow {
		key := UnknownQuarter
		if em, ok := raw.(map[string]any); ok {
			if q, ok := QuarterKey(stringField(em, "timestamp")); ok {
				key = q
			}
		}
		groups[key] = append(groups[key], raw)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := m.store.AppendArchive(k, groups[k]); err != nil {
			m.logger.Error("archive write failed", "quarter", k, "entries", len(groups[k]), "error", err)
			continue
		}
		m.logger.Debug("archived work log entries", "quarter", k, "entries", len(groups[k]))
	}
}

func (m *Manager) enrich(e Entry) Entry {
	now := m.clock.Now()
	if e.Timestamp == "" {
		e.Timestamp = now.UTC().Format(time.RFC3339Nano)
	}
	if e.LocalTime == "" {
		e.LocalTime = now.Format("15:04:05")
	}
	if e.Project == "" {
		e.Project = m.project
	}
	if e.Cwd == "" {
		e.Cwd = m.cwd
	}
	e.Operation = strings.ToLower(e.Operation)
	e.Description = TruncateDescription(e.Description)
	return e
}

func toEntries(raw []any) []Entry {
	out := make([]Entry, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			out = append(out, FromMap(m))
		}
	}
	return out
}
