package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called once per burst of database file changes that were
// not caused by this process.
type ChangeCallback func()

const (
	watchDebounce = 200 * time.Millisecond
	// Changes this close to one of our own commits are attributed to it.
	selfWriteWindow = 500 * time.Millisecond
)

// Watch observes the database file (and its WAL) for writes made by other
// processes, such as a second server or an MCP session sharing the file, and
// calls cb after each debounced burst. It returns when ctx is cancelled.
func Watch(ctx context.Context, db *DB, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(db.Path())
	base := filepath.Base(db.Path())
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("path", db.Path()))

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			if db.wroteWithin(selfWriteWindow) {
				logger.Debug("watcher: change attributed to local write")
				continue
			}
			logger.Debug("watcher: external change")
			if cb != nil {
				cb()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
			} else {
				debounce.Reset(watchDebounce)
			}
			fire = debounce.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
