package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/agentlog/internal/clock"
	"github.com/roach88/agentlog/internal/faults"
	"github.com/roach88/agentlog/internal/fileutil"
	"github.com/roach88/agentlog/internal/metrics"
)

// DefaultMaxBackups is the number of backups retained per critical document.
const DefaultMaxBackups = 5

const (
	backupDirName  = "backups"
	corruptDirName = "corrupt"
	archiveDirName = "archive"
)

// Options configures a Store. Zero values select defaults.
type Options struct {
	// Codec selects the on-disk syntax. Defaults to YAML.
	Codec Codec

	// MaxBackups is the retention count per critical document.
	MaxBackups int

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Store persists the memory documents under a single directory:
//
//	<dir>/<name>.<ext>       primary documents
//	<dir>/backups/           pre-write copies of critical documents
//	<dir>/corrupt/           quarantined documents and their sidecars
//	<dir>/archive/           per-quarter work log archives
//
// The store does no cross-process locking. Concurrent writers get
// last-writer-wins; the pre-write backup is what limits the damage.
type Store struct {
	dir        string
	codec      Codec
	maxBackups int
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
	schemas    *schemas

	// writeFile replaces a primary document. Tests swap it to inject
	// write failures.
	writeFile func(path string, data []byte, perm os.FileMode) error

	mu            sync.Mutex
	unrecoverable map[Name]bool
	// unpersisted holds recovered documents whose rewrite of the primary
	// failed. Loads serve them and retry the write until it lands.
	unpersisted map[Name][]byte
}

// Open creates the store directories under dir if needed and compiles the
// document schemas.
func Open(dir string, opts Options) (*Store, error) {
	for _, d := range []string{dir, filepath.Join(dir, backupDirName), filepath.Join(dir, corruptDirName), filepath.Join(dir, archiveDirName)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	sc, err := compileSchemas()
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if opts.Codec == nil {
		opts.Codec = YAML{}
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = DefaultMaxBackups
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Store{
		dir:           dir,
		codec:         opts.Codec,
		maxBackups:    opts.MaxBackups,
		clock:         opts.Clock,
		logger:        opts.Logger.With("component", "store"),
		metrics:       opts.Metrics,
		schemas:       sc,
		writeFile:     fileutil.WriteAtomic,
		unrecoverable: make(map[Name]bool),
		unpersisted:   make(map[Name][]byte),
	}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the primary file path of a document.
func (s *Store) Path(name Name) string {
	return filepath.Join(s.dir, string(name)+"."+s.codec.Ext())
}

// Validate checks doc against the structural contract of its kind.
// Invalid documents yield a faults.KindPermanentValidation error.
func (s *Store) Validate(name Name, doc Document) error {
	if !name.Known() {
		return faults.Validation("validate", fmt.Errorf("unknown document %q", name))
	}
	return s.schemas.validate(string(name), doc)
}

// Load returns the named document, or an empty document when it is missing,
// empty, or could not be read or recovered. It never fails.
func (s *Store) Load(name Name) Document {
	doc, _ := s.LoadStatus(name)
	return doc
}

// LoadStatus is Load that also reports whether the document was restored
// from a backup during this call.
//
// A critical document that fails to parse or validate is quarantined and
// replaced by the newest backup that itself parses and validates. If no
// backup qualifies, the document is marked unrecoverable and reads return
// the empty default until a successful Save replaces it. Non-critical
// documents fall back to the empty default and are left in place.
func (s *Store) LoadStatus(name Name) (Document, bool) {
	if s.isUnrecoverable(name) {
		return Document{}, false
	}
	if doc, ok := s.loadUnpersisted(name); ok {
		return doc, false
	}

	path := s.Path(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, false
	}
	if err != nil {
		s.logger.Error("read document failed", "doc", name, "error", err)
		return Document{}, false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, false
	}

	doc, err := s.decode(string(name), data)
	if err == nil {
		return doc, false
	}

	if !name.Critical() {
		s.logger.Error("document failed to load, using default", "doc", name, "error", err)
		return Document{}, false
	}
	return s.recover(name, path, err)
}

// Save writes doc as the named document.
//
// The document is validated first; an invalid document is rejected and
// nothing on disk changes. For a critical document whose primary exists,
// a backup is taken and old backups pruned before the write. The write
// itself replaces the primary atomically, so a failed Save leaves the
// previous version (and its fresh backup) intact.
func (s *Store) Save(name Name, doc Document) error {
	if doc == nil {
		doc = Document{}
	}
	if err := s.Validate(name, doc); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	data, err := s.codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}

	path := s.Path(name)
	if name.Critical() {
		if _, err := os.Stat(path); err == nil {
			if _, err := s.backup(name, path); err != nil {
				s.logger.Error("backup failed, save aborted", "doc", name, "error", err)
				return fmt.Errorf("save %s: %w", name, err)
			}
		}
	}

	if err := s.writeFile(path, data, 0o644); err != nil {
		s.logger.Error("write document failed", "doc", name, "error", err)
		return fmt.Errorf("save %s: %w", name, err)
	}

	s.setUnrecoverable(name, false)
	s.setUnpersisted(name, nil)
	return nil
}

// decode parses and validates raw document bytes for the given kind.
func (s *Store) decode(kind string, data []byte) (Document, error) {
	doc, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, faults.Validation("decode "+kind, err)
	}
	if err := s.schemas.validate(kind, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// recover quarantines the broken primary and adopts the newest valid backup.
func (s *Store) recover(name Name, path string, cause error) (Document, bool) {
	s.logger.Error("critical document corrupt", "doc", name, "error", cause)

	if _, err := s.quarantine(string(name), path, cause); err != nil {
		s.logger.Error("quarantine failed", "doc", name, "error", err)
	}

	backups, err := s.Backups(name)
	if err != nil {
		s.logger.Error("list backups failed", "doc", name, "error", err)
	}
	for i := len(backups) - 1; i >= 0; i-- {
		b := backups[i]
		data, err := os.ReadFile(b.Path)
		if err != nil {
			s.logger.Warn("skipping unreadable backup", "backup", b.Path, "error", err)
			continue
		}
		doc, err := s.decode(string(name), data)
		if err != nil {
			s.logger.Warn("skipping invalid backup", "backup", b.Path, "error", err)
			continue
		}

		if err := s.writeFile(path, data, 0o644); err != nil {
			s.logger.Error("re-persist recovered document failed", "doc", name, "error", err)
			s.setUnpersisted(name, data)
		}
		s.logger.Error("document recovered from backup", "doc", name, "backup", filepath.Base(b.Path))
		s.metrics.Recovery(string(name), true)
		return doc, true
	}

	s.setUnrecoverable(name, true)
	s.metrics.Recovery(string(name), false)
	s.logger.Error("no valid backup, document unrecoverable this run", "doc", name)
	return Document{}, false
}

// loadUnpersisted serves a recovered document whose primary write failed,
// retrying the write first.
func (s *Store) loadUnpersisted(name Name) (Document, bool) {
	s.mu.Lock()
	data, ok := s.unpersisted[name]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	if err := s.writeFile(s.Path(name), data, 0o644); err != nil {
		s.logger.Warn("re-persist recovered document still failing", "doc", name, "error", err)
	} else {
		s.setUnpersisted(name, nil)
	}
	doc, err := s.decode(string(name), data)
	if err != nil {
		return nil, false
	}
	return doc, true
}

func (s *Store) setUnpersisted(name Name, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data == nil {
		delete(s.unpersisted, name)
	} else {
		s.unpersisted[name] = data
	}
}

func (s *Store) isUnrecoverable(name Name) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unrecoverable[name]
}

func (s *Store) setUnrecoverable(name Name, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.unrecoverable[name] = true
	} else {
		delete(s.unrecoverable, name)
	}
}
