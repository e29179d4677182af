package sync

import (
	"strings"
	"time"
)

// FileRecord is one side's view of a single file within one directory.
type FileRecord struct {
	// Name is the logical file name (decoded for remote records).
	// Forward-slash relative form, compared case-insensitively.
	Name string

	// Size in bytes.
	Size int64

	// ModTime is the modification instant of record: UTC, truncated to
	// whole seconds. Sub-second precision is never compared.
	ModTime time.Time

	// Key is the physical remote object key this record was decoded
	// from. Empty for local records.
	Key string

	// StaleKeys are older physical copies of the same logical file left
	// behind by an interrupted run. They are deleted when the file is
	// next replaced.
	StaleKeys []string
}

// Snapshot maps a case-folded logical name to its record, for one
// directory level on one side, at one point in time. Rebuilt on every
// run, never persisted.
type Snapshot map[string]*FileRecord

// snapKey folds a logical name for case-insensitive matching.
func snapKey(name string) string {
	return strings.ToLower(name)
}
