package eventlog

import (
	"strings"
	"time"
)

// Daily log files are named agent-activity-YYYY-MM-DD.log.
const (
	FilePrefix = "agent-activity-"
	FileSuffix = ".log"
	dateLayout = "2006-01-02"
)

// FileName returns the log file name for the calendar day of t, in t's location.
func FileName(t time.Time) string {
	return FilePrefix + t.Format(dateLayout) + FileSuffix
}

// WindowStart returns the YYYY-MM-DD date days before now, in now's
// location. It is the lower bound of a "last N days" file scan.
func WindowStart(now time.Time, days int) string {
	return now.AddDate(0, 0, -days).Format(dateLayout)
}

// ParseFileName extracts the YYYY-MM-DD date from a log file name.
// Directory components are ignored.
func ParseFileName(name string) (string, bool) {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileSuffix) {
		return "", false
	}
	date := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), FileSuffix)
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", false
	}
	return date, true
}
