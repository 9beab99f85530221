package cron

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchStore re-arms the timer whenever the jobs file changes on disk,
// so edits made by another process (the CLI) take effect without a
// restart. Runs until ctx is cancelled.
func WatchStore(ctx context.Context, store *Store, timer *Timer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: atomic rename-replace swaps the file inode.
	if err := watcher.Add(filepath.Dir(store.Path())); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(store.Path()), err)
	}

	jobsFile := filepath.Base(store.Path())
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != jobsFile {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				slog.Debug("cron.store_changed", "op", ev.Op.String())
				timer.Rearm()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("cron.watch_error", "error", err)
			}
		}
	}()
	return nil
}
