// Package workspace manages the local side of a sync pair: the root
// directory, the .pairsync metadata dir, and an advisory lock that keeps
// two processes from reconciling the same tree at once.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/pairsync/pairsync/internal/utils"
)

const (
	// MetaDirName holds pairsync's own state inside a local root. It is
	// excluded from scans and never synced.
	MetaDirName = ".pairsync"

	lockFileName = "pairsync.lock"
)

var ErrRunInProgress = errors.New("another sync is running on this root")

type Workspace struct {
	Root    string
	MetaDir string

	flock *flock.Flock
}

func New(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", rootDir, err)
	}

	metaDir := filepath.Join(root, MetaDirName)

	return &Workspace{
		Root:    root,
		MetaDir: metaDir,
		flock:   flock.New(filepath.Join(metaDir, lockFileName)),
	}, nil
}

// Setup creates the root and metadata directories. Idempotent.
func (w *Workspace) Setup() error {
	if err := utils.EnsureDir(w.Root); err != nil {
		return fmt.Errorf("create root %q: %w", w.Root, err)
	}
	if err := utils.EnsureDir(w.MetaDir); err != nil {
		return fmt.Errorf("create metadata dir %q: %w", w.MetaDir, err)
	}
	return nil
}

// Lock takes the advisory run lock. A second concurrent run on the same
// root gets ErrRunInProgress instead of racing this one's directory
// reconciliation.
func (w *Workspace) Lock() error {
	if err := w.Setup(); err != nil {
		return err
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock workspace: %w", err)
	}
	if !locked {
		return ErrRunInProgress
	}

	return nil
}

func (w *Workspace) Unlock() error {
	// don't remove a lock file this process never held
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock workspace: %w", err)
	}

	return os.Remove(w.flock.Path())
}
