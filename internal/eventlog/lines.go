package eventlog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// lineReader walks complete, newline-terminated lines of a log file and
// tracks the byte offset and line number reached. A trailing line without
// its terminator belongs to a writer that is still appending; it is left
// unread and the offset stays in front of it.
type lineReader struct {
	r      *bufio.Reader
	source string
	offset int64
	line   int
}

func newLineReader(r io.Reader, source string, offset int64, line int) *lineReader {
	return &lineReader{
		r:      bufio.NewReader(r),
		source: source,
		offset: offset,
		line:   line,
	}
}

// next returns the next parsed event. ok is false at end of input. A line
// that fails to parse is consumed and reported through parseErr.
func (lr *lineReader) next() (ev Event, parseErr error, ok bool, err error) {
	for {
		raw, readErr := lr.r.ReadBytes('\n')
		if readErr == io.EOF {
			return Event{}, nil, false, nil
		}
		if readErr != nil {
			return Event{}, nil, false, fmt.Errorf("read %s: %w", lr.source, readErr)
		}

		lr.offset += int64(len(raw))
		lr.line++

		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		rec, perr := ParseRecord(raw)
		if perr != nil {
			return Event{}, fmt.Errorf("%s:%d: %w", lr.source, lr.line, perr), true, nil
		}
		return Event{Record: rec, Source: lr.source, Line: lr.line}, nil, true, nil
	}
}

// countLines returns the number of newline bytes in the first n bytes of r.
func countLines(r io.Reader, n int64) (int, error) {
	buf := make([]byte, 32*1024)
	count := 0
	limited := io.LimitReader(r, n)
	for {
		m, err := limited.Read(buf)
		count += bytes.Count(buf[:m], []byte{'\n'})
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
	}
}
