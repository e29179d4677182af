package sync

import (
	"time"
)

// Remote objects are stored under "<stamp>_<name>" where <stamp> is the
// uploader's local modification instant, normalized to UTC and truncated
// to whole seconds. The instant of record always travels with the object
// name, so the remote store's own clock and timestamp handling are never
// trusted. The form is fixed-width and lexically sortable.
const (
	stampLayout = "20060102T150405Z"
	stampWidth  = len(stampLayout)
	stampSep    = '_'
)

// Truncate normalizes an instant for comparison: UTC, whole seconds.
// Every FileRecord.ModTime passes through here before any comparison.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// EncodeName produces the physical remote name for a logical file name
// and its modification instant.
func EncodeName(name string, t time.Time) string {
	return Truncate(t).Format(stampLayout) + string(stampSep) + name
}

// DecodeName is the exact inverse of EncodeName for every name the
// encoder can produce. For anything else it reports ok=false: wrong
// width, wrong separator, an invalid stamp, or an empty remainder. It
// never guesses and never panics.
func DecodeName(key string) (name string, t time.Time, ok bool) {
	if len(key) < stampWidth+2 {
		return "", time.Time{}, false
	}
	if key[stampWidth] != stampSep {
		return "", time.Time{}, false
	}

	stamp, err := time.Parse(stampLayout, key[:stampWidth])
	if err != nil {
		return "", time.Time{}, false
	}

	name = key[stampWidth+1:]
	return name, stamp.UTC(), true
}
