package eventlog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ListFiles returns the daily log files in dir whose date falls within
// [from, to], sorted by date. Empty bounds are open. Dates are YYYY-MM-DD
// strings, so lexical comparison orders them correctly.
//
// A missing directory yields no files and no error.
func ListFiles(dir, from, to string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list log files: %w", err)
	}

	type dated struct {
		path string
		date string
	}
	var files []dated
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		date, ok := ParseFileName(e.Name())
		if !ok {
			continue
		}
		if from != "" && date < from {
			continue
		}
		if to != "" && date > to {
			continue
		}
		files = append(files, dated{path: filepath.Join(dir, e.Name()), date: date})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].date != files[j].date {
			return files[i].date < files[j].date
		}
		return files[i].path < files[j].path
	})

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

// ReadFile reads every complete record in a log file. Malformed lines are
// skipped and counted.
func ReadFile(path string) (events []Event, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	defer f.Close()

	lr := newLineReader(f, filepath.Base(path), 0, 0)
	for {
		ev, parseErr, ok, err := lr.next()
		if err != nil {
			return events, skipped, err
		}
		if !ok {
			return events, skipped, nil
		}
		if parseErr != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
}
