package sync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/pairsync/pairsync/internal/storage"
	"github.com/pairsync/pairsync/internal/utils"
	"github.com/pairsync/pairsync/internal/workspace"
)

const markerName = "lastsync"

// Pair binds one local tree to one remote prefix for a run.
type Pair struct {
	LocalRoot    string
	RemotePrefix string
}

// Engine drives one batch reconciliation pass over the configured pairs.
// Each pair is planned in full (parent directories before children),
// then applied in plan order through the storage provider, feeding the
// shared progress accumulator after every completed transfer.
//
// Every run re-derives all state by snapshotting both sides, so an
// aborted run is safely resumable: the next invocation re-plans from
// scratch and at worst re-transfers a file whose copy was interrupted.
type Engine struct {
	provider storage.Provider
	pairs    []Pair
	workers  int
	dryRun   bool
	progress *Progress
}

type Option func(*Engine)

// WithWorkers bounds how many pairs reconcile concurrently.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithDryRun plans and reports totals without applying any action.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

func NewEngine(provider storage.Provider, pairs []Pair, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		pairs:    pairs,
		workers:  1,
		progress: NewProgress(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Progress exposes the run's accumulator for reporting and tests.
func (e *Engine) Progress() *Progress {
	return e.progress
}

// Run reconciles all pairs. Pairs are independent trees, so they run
// under a bounded worker pool; a pair that fails is logged and does not
// abort the others. Only context cancellation stops the run.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, pair := range e.pairs {
		g.Go(func() error {
			return e.syncPair(ctx, pair)
		})
	}

	return g.Wait()
}

func (e *Engine) syncPair(ctx context.Context, pair Pair) error {
	log := slog.With("local", pair.LocalRoot, "remote", pair.RemotePrefix)

	ws, err := workspace.New(pair.LocalRoot)
	if err != nil {
		log.Error("workspace", "error", err)
		return nil
	}
	if err := ws.Lock(); err != nil {
		if errors.Is(err, workspace.ErrRunInProgress) {
			log.Warn("skipping pair", "error", err)
			return nil
		}
		log.Error("workspace lock", "error", err)
		return nil
	}
	defer ws.Unlock()

	if last, err := e.provider.ReadText(ctx, e.markerKey(pair)); err == nil {
		log.Debug("previous completed sync", "at", last)
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Debug("sync marker unavailable", "error", err)
	}

	ignore := NewIgnoreList(pair.LocalRoot)
	ignore.Load()

	plans := e.planTree(ctx, pair, ignore, "")

	var totals Totals
	for _, plan := range plans {
		totals = totals.Add(ComputeTotals(plan.actions))
	}
	e.progress.AddTotals(totals)

	log.Info("planned",
		"dirs", len(plans),
		"transfers", totals.Files,
		"bytes", humanize.Bytes(uint64(totals.Bytes)),
	)

	if e.dryRun {
		return nil
	}

	// the remote root must exist before any child level; creating it is
	// idempotent
	if err := e.provider.CreateFolder(ctx, pair.RemotePrefix); err != nil {
		log.Error("create remote root", "error", err)
		return nil
	}

	for _, plan := range plans {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.applyDir(ctx, pair, plan)
	}

	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := e.provider.WriteText(ctx, e.markerKey(pair), stamp); err != nil {
		log.Warn("write sync marker", "error", err)
	}

	log.Info("pair complete", "progress", e.progress.String())
	return nil
}

type dirPlan struct {
	rel     string
	actions []Action
}

// planTree reconciles one directory level and recurses into the union of
// subdirectories on either side, parents strictly before children. A
// failed listing on either side degrades to an empty snapshot for that
// level: a conservative "nothing known here" keeps the rest of the tree
// reconciling instead of aborting the run.
func (e *Engine) planTree(ctx context.Context, pair Pair, ignore *IgnoreList, rel string) []dirPlan {
	localDir := filepath.Join(pair.LocalRoot, filepath.FromSlash(rel))
	remoteDir := path.Join(pair.RemotePrefix, rel)

	localSnap, localSubs, err := ScanLocalDir(localDir, rel, ignore)
	if err != nil {
		slog.Warn("local scan failed, treating as empty", "dir", localDir, "error", err)
		localSnap = Snapshot{}
	}

	entries, err := e.provider.List(ctx, remoteDir)
	if err != nil {
		slog.Warn("remote listing failed, assuming empty", "dir", remoteDir, "error", err)
		entries = nil
	}
	remoteSnap := BuildRemoteSnapshot(entries)

	plans := []dirPlan{{rel: rel, actions: Reconcile(localSnap, remoteSnap)}}

	remoteSubs, err := e.provider.ListFolders(ctx, remoteDir)
	if err != nil {
		slog.Warn("remote folder listing failed, assuming none", "dir", remoteDir, "error", err)
		remoteSubs = nil
	}

	for _, sub := range unionSubdirs(rel, localSubs, remoteSubs, ignore) {
		plans = append(plans, e.planTree(ctx, pair, ignore, path.Join(rel, sub))...)
	}

	return plans
}

func unionSubdirs(rel string, localSubs, remoteSubs []string, ignore *IgnoreList) []string {
	seen := make(map[string]struct{})
	var subs []string

	for _, sub := range append(append([]string{}, localSubs...), remoteSubs...) {
		folded := snapKey(sub)
		if _, ok := seen[folded]; ok {
			continue
		}
		seen[folded] = struct{}{}
		if folded == snapKey(workspace.MetaDirName) {
			continue
		}
		if ignore != nil && ignore.ShouldIgnore(path.Join(rel, sub), true) {
			continue
		}
		subs = append(subs, sub)
	}

	sort.Strings(subs)
	return subs
}

// applyDir materializes one directory's plan. The level is guaranteed to
// exist on both sides before any transfer or child directory is touched.
// Action failures are transient by taxonomy: logged, skipped, and picked
// up wholesale on the next run.
func (e *Engine) applyDir(ctx context.Context, pair Pair, plan dirPlan) {
	localDir := filepath.Join(pair.LocalRoot, filepath.FromSlash(plan.rel))
	remoteDir := path.Join(pair.RemotePrefix, plan.rel)
	log := slog.With("dir", remoteDir)

	if err := utils.EnsureDir(localDir); err != nil {
		log.Error("ensure local dir, skipping directory", "error", err)
		return
	}
	if plan.rel != "" {
		if err := e.provider.CreateFolder(ctx, remoteDir); err != nil {
			log.Warn("create remote folder, skipping directory", "error", err)
			return
		}
	}

	for _, action := range plan.actions {
		if ctx.Err() != nil {
			return
		}
		switch action.Op {
		case OpUpload:
			e.applyUpload(ctx, localDir, remoteDir, action)
		case OpDownload:
			e.applyDownload(ctx, localDir, action)
		case OpSkip:
			// exact timestamp equality: no transfer, no churn
		}
	}
}

func (e *Engine) applyUpload(ctx context.Context, localDir, remoteDir string, action Action) {
	localPath := filepath.Join(localDir, action.Name)
	key := path.Join(remoteDir, EncodeName(action.Name, action.Local.ModTime))

	// superseded copies go first so the new object ends up the sole
	// survivor; if a delete fails the upload is deferred to the next run
	// rather than risking two live copies
	for _, stale := range action.Supersedes {
		if err := e.provider.Delete(ctx, stale); err != nil {
			slog.Warn("delete superseded copy failed, deferring upload", "key", stale, "error", err)
			return
		}
	}

	if err := e.provider.Upload(ctx, localPath, key); err != nil {
		slog.Warn("upload failed", "path", localPath, "error", err)
		return
	}

	e.progress.Complete(action.Local.Size)
	slog.Info("uploaded", "key", key, "progress", e.progress.String())
}

func (e *Engine) applyDownload(ctx context.Context, localDir string, action Action) {
	localPath := filepath.Join(localDir, action.Remote.Name)

	if err := e.provider.Download(ctx, action.Remote.Key, localPath); err != nil {
		slog.Warn("download failed", "key", action.Remote.Key, "error", err)
		return
	}

	// restore the instant of record so the next run compares equal
	if err := os.Chtimes(localPath, action.Remote.ModTime, action.Remote.ModTime); err != nil {
		slog.Warn("restore mtime", "path", localPath, "error", err)
	}

	e.progress.Complete(action.Remote.Size)
	slog.Info("downloaded", "key", action.Remote.Key, "progress", e.progress.String())
}

func (e *Engine) markerKey(pair Pair) string {
	return path.Join(pair.RemotePrefix, workspace.MetaDirName, markerName)
}
