package workspace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairsync/pairsync/internal/utils"
)

func TestNew(t *testing.T) {
	root := t.TempDir()

	ws, err := New(root)
	require.NoError(t, err)
	assert.Equal(t, root, ws.Root)
	assert.Equal(t, filepath.Join(root, MetaDirName), ws.MetaDir)
}

func TestSetupIdempotent(t *testing.T) {
	ws, err := New(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	require.NoError(t, ws.Setup())
	require.NoError(t, ws.Setup())

	assert.True(t, utils.DirExists(ws.Root))
	assert.True(t, utils.DirExists(ws.MetaDir))
}

func TestLockExcludesSecondRun(t *testing.T) {
	root := t.TempDir()

	first, err := New(root)
	require.NoError(t, err)
	require.NoError(t, first.Lock())

	second, err := New(root)
	require.NoError(t, err)
	assert.ErrorIs(t, second.Lock(), ErrRunInProgress)

	require.NoError(t, first.Unlock())

	// released lock is free for the next run
	require.NoError(t, second.Lock())
	require.NoError(t, second.Unlock())
}

func TestUnlockRemovesLockFile(t *testing.T) {
	ws, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ws.Lock())
	assert.True(t, utils.FileExists(filepath.Join(ws.MetaDir, lockFileName)))

	require.NoError(t, ws.Unlock())
	assert.False(t, utils.FileExists(filepath.Join(ws.MetaDir, lockFileName)))
}

func TestUnlockWithoutLockIsNoop(t *testing.T) {
	ws, err := New(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, ws.Unlock())
}
