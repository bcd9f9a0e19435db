package recovery

import (
	"path/filepath"
	"sort"

	"github.com/roach88/agentlog/internal/eventlog"
)

// Scan lists the daily log files in dirs whose date falls within
// [from, to] (YYYY-MM-DD, empty bounds open). Files are ordered by date,
// then path; a directory listed twice contributes its files once. Missing
// directories are skipped.
func Scan(dirs []string, from, to string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, dir := range dirs {
		found, err := eventlog.ListFiles(dir, from, to)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			abs, err := filepath.Abs(f)
			if err != nil {
				abs = f
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			files = append(files, abs)
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		di, _ := eventlog.ParseFileName(files[i])
		dj, _ := eventlog.ParseFileName(files[j])
		if di != dj {
			return di < dj
		}
		return files[i] < files[j]
	})
	return files, nil
}
