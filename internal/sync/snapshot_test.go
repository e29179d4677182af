package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairsync/pairsync/internal/storage"
)

func writeLocal(t *testing.T, dir, name, content string, mod time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestScanLocalDir(t *testing.T) {
	dir := t.TempDir()
	mod := time.Date(2024, 2, 2, 8, 0, 0, 500e6, time.Local)

	writeLocal(t, dir, "a.txt", "aaa", mod)
	writeLocal(t, dir, "B.txt", "bb", mod)
	writeLocal(t, dir, "sub/c.txt", "c", mod)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))

	snap, subdirs, err := ScanLocalDir(dir, "", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"empty", "sub"}, subdirs)
	require.Len(t, snap, 2, "one level only, subdirectory files excluded")

	rec := snap[snapKey("a.txt")]
	require.NotNil(t, rec)
	assert.Equal(t, "a.txt", rec.Name)
	assert.Equal(t, int64(3), rec.Size)
	assert.Equal(t, time.UTC, rec.ModTime.Location())
	assert.Zero(t, rec.ModTime.Nanosecond(), "instants are truncated at scan time")
	assert.Empty(t, rec.Key, "local records have no remote key")

	// case-folded lookup finds the mixed-case entry
	require.NotNil(t, snap[snapKey("b.TXT")])
}

func TestScanLocalDirMissingIsEmpty(t *testing.T) {
	snap, subdirs, err := ScanLocalDir(filepath.Join(t.TempDir(), "nope"), "", nil)
	require.NoError(t, err)
	assert.Empty(t, snap)
	assert.Empty(t, subdirs)
}

func TestScanLocalDirIgnores(t *testing.T) {
	dir := t.TempDir()
	mod := time.Now()

	writeLocal(t, dir, "keep.txt", "x", mod)
	writeLocal(t, dir, "skip.tmp", "x", mod)
	writeLocal(t, dir, ".DS_Store", "x", mod)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".pairsync"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))

	ignore := NewIgnoreList(dir)
	ignore.Load()

	snap, subdirs, err := ScanLocalDir(dir, "", ignore)
	require.NoError(t, err)

	require.Len(t, snap, 1)
	assert.NotNil(t, snap[snapKey("keep.txt")])
	assert.Equal(t, []string{"docs"}, subdirs)
}

func TestScanLocalDirCustomIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	mod := time.Now()

	writeLocal(t, dir, ".pairsyncignore", "*.bak\n", mod)
	writeLocal(t, dir, "keep.txt", "x", mod)
	writeLocal(t, dir, "old.bak", "x", mod)

	ignore := NewIgnoreList(dir)
	ignore.Load()

	snap, _, err := ScanLocalDir(dir, "", ignore)
	require.NoError(t, err)

	require.Len(t, snap, 1, "custom rules add to defaults, ignore file itself excluded")
	assert.NotNil(t, snap[snapKey("keep.txt")])
}

func TestScanLocalDirPathQualifiedIgnore(t *testing.T) {
	root := t.TempDir()
	mod := time.Now()

	writeLocal(t, root, ".pairsyncignore", "docs/secret.txt\nbuild/\n", mod)
	writeLocal(t, root, "docs/secret.txt", "x", mod)
	writeLocal(t, root, "docs/public.txt", "x", mod)
	writeLocal(t, root, "other/secret.txt", "x", mod)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o755))

	ignore := NewIgnoreList(root)
	ignore.Load()

	// rules match the full pair-relative path, not just the base name
	snap, _, err := ScanLocalDir(filepath.Join(root, "docs"), "docs", ignore)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.NotNil(t, snap[snapKey("public.txt")])
	assert.Nil(t, snap[snapKey("secret.txt")])

	// the same base name elsewhere is not covered by the qualified rule
	snap, _, err = ScanLocalDir(filepath.Join(root, "other"), "other", ignore)
	require.NoError(t, err)
	assert.NotNil(t, snap[snapKey("secret.txt")])

	_, subdirs, err := ScanLocalDir(root, "", ignore)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "other"}, subdirs)
}

func TestBuildRemoteSnapshotDecodesNames(t *testing.T) {
	mod := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	storeTime := time.Date(2024, 3, 5, 0, 0, 0, 700e6, time.UTC)

	snap := BuildRemoteSnapshot([]storage.Entry{
		{Name: EncodeName("a.txt", mod), Key: "docs/" + EncodeName("a.txt", mod), Size: 3, LastModified: storeTime},
		{Name: "raw-name.txt", Key: "docs/raw-name.txt", Size: 7, LastModified: storeTime},
	})

	require.Len(t, snap, 2)

	decoded := snap[snapKey("a.txt")]
	require.NotNil(t, decoded)
	assert.Equal(t, "a.txt", decoded.Name)
	assert.True(t, decoded.ModTime.Equal(mod), "instant of record comes from the name, not the store")
	assert.Equal(t, "docs/"+EncodeName("a.txt", mod), decoded.Key)

	// names the encoder did not produce fall back to the store's time
	raw := snap[snapKey("raw-name.txt")]
	require.NotNil(t, raw)
	assert.True(t, raw.ModTime.Equal(Truncate(storeTime)))
	assert.Zero(t, raw.ModTime.Nanosecond())
}

func TestBuildRemoteSnapshotNewestDuplicateWins(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(2 * time.Hour)

	oldKey := "docs/" + EncodeName("a.txt", older)
	newKey := "docs/" + EncodeName("a.txt", newer)

	// order of listing must not matter
	for name, entries := range map[string][]storage.Entry{
		"old first": {
			{Name: EncodeName("a.txt", older), Key: oldKey, Size: 1},
			{Name: EncodeName("a.txt", newer), Key: newKey, Size: 2},
		},
		"new first": {
			{Name: EncodeName("a.txt", newer), Key: newKey, Size: 2},
			{Name: EncodeName("a.txt", older), Key: oldKey, Size: 1},
		},
	} {
		t.Run(name, func(t *testing.T) {
			snap := BuildRemoteSnapshot(entries)

			require.Len(t, snap, 1)
			rec := snap[snapKey("a.txt")]
			assert.Equal(t, newKey, rec.Key)
			assert.True(t, rec.ModTime.Equal(newer))
			assert.Equal(t, []string{oldKey}, rec.StaleKeys)
		})
	}
}
