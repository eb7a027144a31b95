package project

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates a Cache when files are created, removed or renamed
// in the watched directories, or when a watched file is rewritten.
type Watcher struct {
	cache        *Cache
	fsw          *fsnotify.Watcher
	logger       *slog.Logger
	onInvalidate func(path string)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// OnInvalidate registers a callback run after each invalidation.
func OnInvalidate(fn func(path string)) WatcherOption {
	return func(w *Watcher) {
		w.onInvalidate = fn
	}
}

// WithWatchLogger sets the logger for watch events.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher registers dirs with fsnotify. Directories are watched
// recursively, skipping node_modules and hidden directories. Regular file
// paths are watched individually.
func NewWatcher(cache *Cache, dirs []string, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("project: watcher: %w", err)
	}
	w := &Watcher{
		cache:  cache,
		fsw:    fsw,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, dir := range dirs {
		if err := w.addTree(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	if !isDir(root) {
		if err := w.fsw.Add(root); err != nil {
			return fmt.Errorf("project: watch %s: %w", root, err)
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root {
			if _, skip := skipDirs[d.Name()]; skip || d.Name()[0] == '.' {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("project: watch %s: %w", path, err)
		}
		return nil
	})
}

// Run processes events until ctx is done. It closes the underlying
// fsnotify watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			// Hidden entries (the report database and its -wal/-shm
			// files among them) never hold definitions.
			if isHidden(ev.Name) && !w.watchedFile(ev.Name) {
				continue
			}
			structural := ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
			// Content edits of source files do not move the root; edits of
			// an individually watched config file do.
			if !structural && !(ev.Has(fsnotify.Write) && w.watchedFile(ev.Name)) {
				continue
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				if err := w.addTree(ev.Name); err != nil {
					w.logger.Warn("watch new directory", slog.String("path", ev.Name), slog.Any("error", err))
				}
			}
			w.cache.Invalidate()
			w.logger.Debug("project cache invalidated",
				slog.String("path", ev.Name),
				slog.String("op", ev.Op.String()))
			if w.onInvalidate != nil {
				w.onInvalidate(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.Any("error", err))
		}
	}
}

// watchedFile reports whether path was registered as an individual file,
// such as the workspace config file.
func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func (w *Watcher) watchedFile(path string) bool {
	for _, p := range w.fsw.WatchList() {
		if p == path && !isDir(p) {
			return true
		}
	}
	return false
}
