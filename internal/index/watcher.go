package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultSettle = 500 * time.Millisecond

// Watch starts an fsnotify watcher on the corpus root and runs a full
// synchronization after file changes settle. Because chunk ids are
// positional, a single edited document can shift the ids of every
// later chunk, so the watcher never updates files individually.
//
// settle is the debounce window between the last observed change and
// the sync pass; zero picks a default. cb (if non-nil) is called after
// each successful pass.
//
// New directories created at runtime are added to the watch list.
func Watch(ctx context.Context, s *Synchronizer, root string, settle time.Duration, logger *slog.Logger, cb func(*Stats)) error {
	if settle <= 0 {
		settle = defaultSettle
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// syncTimer debounces bursts of events into one pass.
	var syncTimer *time.Timer
	var syncCh <-chan time.Time

	scheduleSync := func() {
		if syncTimer == nil {
			syncTimer = time.NewTimer(settle)
			syncCh = syncTimer.C
		} else {
			syncTimer.Reset(settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if syncTimer != nil {
				syncTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-syncCh:
			stats, syncErr := s.Sync(ctx)
			if syncErr != nil {
				logger.Error("watcher: sync failed", slog.String("error", syncErr.Error()))
				continue
			}
			logger.Debug("watcher: synced",
				slog.Int("documents", stats.Documents),
				slog.Int("chunks", stats.Chunks),
				slog.Int("removed", stats.Removed))
			if cb != nil {
				cb(stats)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			// New directories join the watch list; any files already
			// inside them are picked up by the scheduled pass.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					scheduleSync()
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
				scheduleSync()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
