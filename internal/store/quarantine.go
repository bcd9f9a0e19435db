package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/agentlog/internal/fileutil"
)

// QuarantineRecord describes a corrupt file moved out of its primary slot.
// Quarantined files are never deleted automatically.
type QuarantineRecord struct {
	Path          string    `yaml:"-"`
	OriginalPath  string    `yaml:"original_path"`
	QuarantinedAt time.Time `yaml:"quarantined_at"`
	Error         string    `yaml:"error"`
}

// quarantine moves path into the corrupt directory and writes a metadata
// sidecar next to it.
func (s *Store) quarantine(base, path string, cause error) (QuarantineRecord, error) {
	dir := filepath.Join(s.dir, corruptDirName)
	now := s.clock.Now().UTC()

	dst, _, err := freeStampedPath(dir, base, now, extOf(path))
	if err != nil {
		return QuarantineRecord{}, fmt.Errorf("quarantine %s: %w", base, err)
	}
	if err := os.Rename(path, dst); err != nil {
		return QuarantineRecord{}, fmt.Errorf("quarantine %s: move: %w", base, err)
	}

	rec := QuarantineRecord{
		Path:          dst,
		OriginalPath:  path,
		QuarantinedAt: now,
		Error:         errString(cause),
	}
	meta, err := yaml.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("quarantine %s: metadata: %w", base, err)
	}
	if err := fileutil.WriteAtomic(filepath.Join(dir, sidecarName(filepath.Base(dst))), meta, 0o644); err != nil {
		return rec, fmt.Errorf("quarantine %s: metadata: %w", base, err)
	}

	s.metrics.Quarantined(base)
	s.logger.Error("quarantined corrupt file", "file", filepath.Base(path), "quarantine", filepath.Base(dst))
	return rec, nil
}

// Quarantined returns the quarantine records for base (a document name or
// an archive name), oldest first. Records whose sidecar is missing or
// unreadable are still listed with only Path set.
func (s *Store) Quarantined(base string) ([]QuarantineRecord, error) {
	dir := filepath.Join(s.dir, corruptDirName)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list quarantine: %w", err)
	}

	type item struct {
		st  Stamped
		rec QuarantineRecord
	}
	var items []item
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		st, ok := ParseStampedName(base, e.Name())
		if !ok {
			continue
		}
		rec := QuarantineRecord{QuarantinedAt: st.Created}
		if meta, err := os.ReadFile(filepath.Join(dir, sidecarName(e.Name()))); err == nil {
			_ = yaml.Unmarshal(meta, &rec)
		}
		rec.Path = filepath.Join(dir, e.Name())
		items = append(items, item{st: st, rec: rec})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].st.Less(items[j].st) })
	out := make([]QuarantineRecord, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out, nil
}

func extOf(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "dat"
	}
	return ext[1:]
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
