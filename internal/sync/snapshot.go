package sync

import (
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/pairsync/pairsync/internal/storage"
)

// ScanLocalDir builds the local snapshot for one directory level:
// regular files only, with the filesystem's last-write time as the
// instant of record. rel is the directory's pair-relative path ("" for
// the root); ignore patterns match against the full relative path, so
// path-qualified rules apply below the root too. Subdirectory names
// come back separately so the engine can recurse over the union of
// both sides. A missing directory is an empty snapshot, not an error.
func ScanLocalDir(dir, rel string, ignore *IgnoreList) (Snapshot, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil, nil
		}
		return nil, nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	snap := make(Snapshot, len(entries))
	var subdirs []string

	for _, entry := range entries {
		name := entry.Name()
		if ignore != nil && ignore.ShouldIgnore(path.Join(rel, name), entry.IsDir()) {
			continue
		}

		if entry.IsDir() {
			subdirs = append(subdirs, name)
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// file vanished mid-scan; the next run picks it up
			continue
		}

		snap[snapKey(name)] = &FileRecord{
			Name:    name,
			Size:    info.Size(),
			ModTime: Truncate(info.ModTime()),
		}
	}

	sort.Strings(subdirs)
	return snap, subdirs, nil
}

// BuildRemoteSnapshot decodes one directory level of remote entries into
// a snapshot. Encoded names yield the embedded instant; names the encoder
// did not produce are carried under their raw name with the store's
// reported time as a conservative fallback, never dropped and never a
// parse failure. When several encoded copies exist for one logical name
// (an interrupted replacement), the newest wins and the rest are kept as
// stale keys for deletion on the next replacement.
func BuildRemoteSnapshot(entries []storage.Entry) Snapshot {
	snap := make(Snapshot, len(entries))

	for _, entry := range entries {
		name, stamp, ok := DecodeName(entry.Name)
		if !ok {
			name = entry.Name
			stamp = Truncate(entry.LastModified)
		}

		rec := &FileRecord{
			Name:    name,
			Size:    entry.Size,
			ModTime: stamp,
			Key:     entry.Key,
		}

		key := snapKey(name)
		prev, exists := snap[key]
		if !exists {
			snap[key] = rec
			continue
		}

		// duplicate logical file: newest copy is canonical
		if rec.ModTime.After(prev.ModTime) {
			rec.StaleKeys = append(append(rec.StaleKeys, prev.Key), prev.StaleKeys...)
			snap[key] = rec
		} else {
			prev.StaleKeys = append(prev.StaleKeys, rec.Key)
		}
	}

	return snap
}
