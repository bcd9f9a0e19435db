package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/roach88/agentlog/internal/fileutil"
)

// Backup is one retained copy of a critical document.
type Backup struct {
	Path    string
	Created time.Time
	Seq     int
}

// Backups returns the retained backups of a document, oldest first.
func (s *Store) Backups(name Name) ([]Backup, error) {
	dir := filepath.Join(s.dir, backupDirName)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var stamped []Stamped
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		st, ok := ParseStampedName(string(name), e.Name())
		if !ok {
			continue
		}
		stamped = append(stamped, st)
		paths = append(paths, filepath.Join(dir, e.Name()))
	}

	out := make([]Backup, len(stamped))
	for i := range stamped {
		out[i] = Backup{Path: paths[i], Created: stamped[i].Created, Seq: stamped[i].Seq}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a := Stamped{Created: out[i].Created, Seq: out[i].Seq}
		b := Stamped{Created: out[j].Created, Seq: out[j].Seq}
		return a.Less(b)
	})
	return out, nil
}

// backup copies the current primary into the backup directory and prunes
// the oldest backups beyond the retention count.
func (s *Store) backup(name Name, path string) (Backup, error) {
	dir := filepath.Join(s.dir, backupDirName)
	created := s.clock.Now().UTC()

	dst, seq, err := freeStampedPath(dir, string(name), created, s.codec.Ext())
	if err != nil {
		return Backup{}, fmt.Errorf("backup %s: %w", name, err)
	}
	if err := fileutil.CopyFile(path, dst); err != nil {
		return Backup{}, fmt.Errorf("backup %s: %w", name, err)
	}
	s.metrics.BackupTaken(string(name))

	if err := s.prune(name); err != nil {
		s.logger.Warn("prune backups failed", "doc", name, "error", err)
	}
	return Backup{Path: dst, Created: created, Seq: seq}, nil
}

// prune removes the oldest backups until at most maxBackups remain.
func (s *Store) prune(name Name) error {
	backups, err := s.Backups(name)
	if err != nil {
		return err
	}
	for len(backups) > s.maxBackups {
		if err := os.Remove(backups[0].Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("prune backup: %w", err)
		}
		backups = backups[1:]
	}
	return nil
}

// freeStampedPath returns the first stamped path in dir that does not exist.
func freeStampedPath(dir, base string, created time.Time, ext string) (string, int, error) {
	for seq := 0; seq < 10000; seq++ {
		p := filepath.Join(dir, StampedName(base, created, seq, ext))
		_, err := os.Lstat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return p, seq, nil
		}
		if err != nil {
			return "", 0, err
		}
	}
	return "", 0, fmt.Errorf("no free name for %s at %s", base, created.Format(stampLayout))
}
