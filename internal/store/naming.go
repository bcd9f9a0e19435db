package store

import (
	"strconv"
	"strings"
	"time"
)

// Backup and quarantine files share one naming scheme:
//
//	<base>.<YYYYMMDD>T<HHMMSS>.<nanoseconds>Z[-<seq>].<ext>
//
// The stamp is UTC. seq disambiguates files created within the same
// nanosecond; it is omitted when zero. Every place that creates or lists
// these files goes through StampedName / ParseStampedName.
const stampLayout = "20060102T150405.000000000Z"

// metaSuffix marks a quarantine metadata sidecar.
const metaSuffix = ".meta.yaml"

// Stamped is a parsed backup or quarantine file name.
type Stamped struct {
	Base    string
	Created time.Time
	Seq     int
	Ext     string
}

// StampedName formats a backup or quarantine file name.
func StampedName(base string, created time.Time, seq int, ext string) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteByte('.')
	b.WriteString(created.UTC().Format(stampLayout))
	if seq > 0 {
		b.WriteByte('-')
		b.WriteString(strconv.Itoa(seq))
	}
	b.WriteByte('.')
	b.WriteString(ext)
	return b.String()
}

// ParseStampedName parses a file name produced by StampedName for base.
// Names for other bases, sidecars, and anything else return ok=false.
func ParseStampedName(base, name string) (Stamped, bool) {
	if strings.HasSuffix(name, metaSuffix) {
		return Stamped{}, false
	}
	rest, found := strings.CutPrefix(name, base+".")
	if !found {
		return Stamped{}, false
	}

	dot := strings.LastIndexByte(rest, '.')
	if dot <= 0 || dot == len(rest)-1 {
		return Stamped{}, false
	}
	stamp, ext := rest[:dot], rest[dot+1:]

	seq := 0
	if i := strings.LastIndexByte(stamp, '-'); i >= 0 {
		n, err := strconv.Atoi(stamp[i+1:])
		if err != nil || n <= 0 {
			return Stamped{}, false
		}
		stamp, seq = stamp[:i], n
	}

	created, err := time.Parse(stampLayout, stamp)
	if err != nil {
		return Stamped{}, false
	}
	return Stamped{Base: base, Created: created, Seq: seq, Ext: ext}, true
}

// Less orders stamped files oldest first.
func (s Stamped) Less(o Stamped) bool {
	if !s.Created.Equal(o.Created) {
		return s.Created.Before(o.Created)
	}
	return s.Seq < o.Seq
}

// sidecarName returns the metadata sidecar name for a quarantined file.
func sidecarName(name string) string {
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		name = name[:dot]
	}
	return name + metaSuffix
}
