package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const archivePrefix = string(WorkLog) + "_"

// ArchivePath returns the path of the work log archive for key, e.g. "2026Q1".
func (s *Store) ArchivePath(key string) string {
	return filepath.Join(s.dir, archiveDirName, archivePrefix+key+"."+s.codec.Ext())
}

// Archive loads the work log archive for key. A missing archive is an
// empty document.
func (s *Store) Archive(key string) (Document, error) {
	path := s.ArchivePath(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", key, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, nil
	}
	return s.decode(archiveKind, data)
}

// AppendArchive appends entries to the archive for key and stamps
// last_updated. An existing archive that fails to load is quarantined and
// a fresh archive started in its place.
func (s *Store) AppendArchive(key string, entries []any) error {
	if len(entries) == 0 {
		return nil
	}
	path := s.ArchivePath(key)

	doc, err := s.Archive(key)
	if err != nil {
		s.logger.Error("archive corrupt, starting fresh", "archive", key, "error", err)
		if _, qerr := s.quarantine(archivePrefix+key, path, err); qerr != nil {
			return fmt.Errorf("append archive %s: %w", key, qerr)
		}
		doc = Document{}
	}

	all := append(Entries(doc), entries...)
	doc["entries"] = all
	doc["last_updated"] = s.clock.Now().UTC().Format(timestampLayout)

	if err := s.schemas.validate(archiveKind, doc); err != nil {
		return fmt.Errorf("append archive %s: %w", key, err)
	}
	data, err := s.codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("append archive %s: %w", key, err)
	}
	if err := s.writeFile(path, data, 0o644); err != nil {
		return fmt.Errorf("append archive %s: %w", key, err)
	}
	return nil
}

// Archives returns the keys of every work log archive, sorted.
func (s *Store) Archives() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, archiveDirName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	suffix := "." + s.codec.Ext()
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), suffix))
	}
	sort.Strings(keys)
	return keys, nil
}
