// Package watch monitors the roots of mapped vaults and reports file changes
// so rendering hosts can re-render visible links. The watcher never touches
// the cache; serving stale content is handled on the read path.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/raido/internal/linkservice"
)

// EventCallback is called for every file change inside a mapped vault.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind, vault, path string)

// Watcher tracks the resolved roots of all registered mappings.
type Watcher struct {
	svc       *linkservice.Service
	logger    *slog.Logger
	cb        EventCallback
	refreshCh chan struct{}
}

// New creates a watcher over the vaults known to svc.
func New(svc *linkservice.Service, logger *slog.Logger, cb EventCallback) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		svc:       svc,
		logger:    logger,
		cb:        cb,
		refreshCh: make(chan struct{}, 1),
	}
}

// Refresh schedules a rebuild of the watched directory set. Safe to call
// from any goroutine; bursts coalesce into one rebuild.
func (w *Watcher) Refresh() {
	select {
	case w.refreshCh <- struct{}{}:
	default:
	}
}

// Run processes filesystem events until ctx is cancelled.
//
// New directories created at runtime are added to the watch list. Rename
// events surface as deletions of the old path; the new path arrives as a
// separate create event when it stays inside a watched vault.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	roots := w.rebuild(fw)
	w.logger.Info("watch: started", slog.Int("vaults", len(roots)))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watch: stopped")
			return nil

		case <-w.refreshCh:
			roots = w.rebuild(fw)
			w.logger.Debug("watch: refreshed", slog.Int("vaults", len(roots)))

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, roots, ev)

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

// rebuild replaces the watch set with the current mappings' resolved roots.
// Returns root path → vault name, with roots sorted longest-first for
// prefix matching.
func (w *Watcher) rebuild(fw *fsnotify.Watcher) map[string]string {
	for _, p := range fw.WatchList() {
		_ = fw.Remove(p)
	}

	roots := make(map[string]string)
	for _, m := range w.svc.ListVaults() {
		root, err := filepath.Abs(w.svc.RootFor(m))
		if err != nil {
			continue
		}
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			// Unreachable roots are expected (unmounted drive); links into
			// them degrade to cache or missing without watching.
			continue
		}
		if err := addDirsRecursive(fw, root); err != nil {
			w.logger.Warn("watch: add root failed",
				slog.String("vault", m.Name),
				slog.String("root", root),
				slog.String("error", err.Error()))
			continue
		}
		roots[root] = m.Name
	}
	return roots
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, roots map[string]string, ev fsnotify.Event) {
	absPath := ev.Name

	// New directories: extend the watch list.
	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
			if addErr := addDirsRecursive(fw, absPath); addErr != nil {
				w.logger.Warn("watch: add new dir failed",
					slog.String("path", absPath),
					slog.String("error", addErr.Error()))
			}
			return
		}
	}

	vault, root := owningVault(roots, absPath)
	if vault == "" {
		return
	}
	rel, relErr := filepath.Rel(root, absPath)
	if relErr != nil {
		return
	}

	var kind string
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = "created"
	case ev.Op&fsnotify.Write != 0:
		kind = "updated"
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		kind = "deleted"
	default:
		return
	}

	w.logger.Debug("watch: event",
		slog.String("vault", vault),
		slog.String("path", rel),
		slog.String("op", kind))
	if w.cb != nil {
		w.cb(kind, vault, rel)
	}
}

// owningVault finds the mapped root containing absPath, preferring the
// longest (most specific) root when vaults nest.
func owningVault(roots map[string]string, absPath string) (vault, root string) {
	keys := make([]string, 0, len(roots))
	for r := range roots {
		keys = append(keys, r)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	for _, r := range keys {
		if absPath == r || strings.HasPrefix(absPath, r+string(os.PathSeparator)) {
			return roots[r], r
		}
	}
	return "", ""
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
