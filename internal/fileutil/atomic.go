// Package fileutil holds small filesystem helpers shared by the store and
// the sync checkpoint.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// WriteAtomic replaces path with data so that readers observe either the
// previous contents or the new contents, never a partial write.
//
// The temporary file is created next to path so the rename never crosses a
// mount point. The directory is synced afterwards so the rename survives a
// crash.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	err := renameio.WriteFile(path, data, perm,
		renameio.WithTempDir(dir),
		renameio.WithStaticPermissions(perm),
	)
	if err != nil {
		return fmt.Errorf("write atomic: %w", err)
	}
	syncDir(dir)
	return nil
}

// CopyFile copies src to dst atomically.
func CopyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("copy file: read: %w", err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("copy file: stat: %w", err)
	}
	return WriteAtomic(dst, data, info.Mode().Perm())
}

// syncDir flushes directory metadata. Not every platform supports it, so
// failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}
