// Package watch re-runs a test suite whenever one of its source files
// changes, for `aegis run --watch`.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gridctl/mcp-aegis/pkg/logging"
)

// Watcher monitors a set of test files and triggers a re-run on change.
type Watcher struct {
	paths    []string
	onChange func() error
	logger   *slog.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher over the given test file paths. onChange is
// called (after debouncing) whenever any of them changes.
func NewWatcher(paths []string, onChange func() error) *Watcher {
	return &Watcher{
		paths:    paths,
		onChange: onChange,
		logger:   logging.NewDiscardLogger(),
		debounce: 300 * time.Millisecond,
	}
}

// SetLogger sets the logger used for watch events.
func (w *Watcher) SetLogger(logger *slog.Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// SetDebounce overrides the default debounce duration.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Watch blocks until ctx is cancelled, re-running onChange each time one of
// the watched files changes.
//
// We watch each file's parent directory rather than the file itself
// because editors commonly save atomically (write a temp file, then rename
// it over the target); fsnotify loses track of a file across a rename, but
// watching the directory still catches the event.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	watchedDirs := map[string]bool{}
	targetNames := map[string]bool{}
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if !watchedDirs[dir] {
			if err := fsw.Add(dir); err != nil {
				return err
			}
			watchedDirs[dir] = true
		}
		targetNames[filepath.Base(p)] = true
	}

	w.logger.Info("watching test files for changes", "count", len(w.paths))

	var debounceTimer *time.Timer
	var debounceChan <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping test file watcher")
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !targetNames[filepath.Base(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.logger.Debug("test file changed", "event", event.Op.String(), "file", event.Name)
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.NewTimer(w.debounce)
				debounceChan = debounceTimer.C
			}

		case <-debounceChan:
			w.logger.Info("change detected, re-running suite")
			if err := w.onChange(); err != nil {
				w.logger.Error("re-run failed", "error", err)
			}
			debounceChan = nil

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}
