package templates

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceDelay is how long Watch waits after the last change before
// reloading, so an editor's write-rename sequence triggers one reload.
const DebounceDelay = 100 * time.Millisecond

// Watch reloads the registry whenever a .cue file in its directory changes.
// It blocks until ctx is done. A reload that fails for some files keeps the
// files that loaded.
func (r *Registry) Watch(ctx context.Context) error {
	if r.dir == "" {
		return fmt.Errorf("watch templates: no template directory configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch templates: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch templates %s: %w", r.dir, err)
	}
	slog.Info("watching templates", "dir", r.dir)

	timer := time.NewTimer(DebounceDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".cue" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("template change", "file", event.Name, "op", event.Op.String())
			timer.Reset(DebounceDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("template watcher error", "error", err)

		case <-timer.C:
			errs := r.Reload()
			for _, err := range errs {
				slog.Warn("template reload", "error", err)
			}
			slog.Info("templates reloaded", "count", len(r.Names()), "errors", len(errs))
		}
	}
}
