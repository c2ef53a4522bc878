// Package watcher monitors the library roots for filesystem changes and
// coalesces bursts of events into single rescan triggers.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches directories recursively through fsnotify. Any event under
// a watched tree fires the debouncer; newly created subdirectories are added
// to the watch set on the fly.
type Watcher struct {
	log      *slog.Logger
	opts     Options
	fsw      *fsnotify.Watcher
	debounce *Debouncer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher that calls onChange after events have settled.
func New(onChange func(), opts Options, log *slog.Logger) (*Watcher, error) {
	opts.setDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		log:      log.With("component", "watcher"),
		opts:     opts,
		fsw:      fsw,
		debounce: NewDebouncer(opts.Debounce, onChange),
	}, nil
}

// Watch adds a directory tree to the watch set.
func (w *Watcher) Watch(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", root)
	}
	return w.watchTree(root)
}

// watchTree registers root and every subdirectory below it. Unreadable
// entries are logged and skipped.
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("cannot access path, skipping", "path", path, "error", err)
			return nil
		}
		if w.opts.shouldIgnore(path) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Warn("failed to add watch", "path", path, "error", err)
			return nil
		}
		w.log.Debug("watching", "path", path)
		return nil
	})
}

// Start launches the event loop.
func (w *Watcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop shuts down the event loop and releases the underlying watches.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.fsw.Close() //nolint:errcheck // Shutdown path
	w.wg.Wait()
	w.debounce.Stop()
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if w.opts.shouldIgnore(event.Name) {
		return
	}

	// A new directory extends the watch set; everything below it counts
	// as a change too.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchTree(event.Name); err != nil {
				w.log.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	}

	w.log.Debug("filesystem event", "op", event.Op.String(), "path", event.Name)
	w.debounce.Trigger()
}
