package audio

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// invalidator drops cached sounds.
type invalidator interface {
	InvalidateCache(path string)
}

// Watcher invalidates cached sounds when their files change on disk.
// Parent directories are watched so editors that replace files are seen.
type Watcher struct {
	mu     sync.Mutex
	logger *slog.Logger
	target invalidator

	fsWatcher *fsnotify.Watcher
	paths     map[string]struct{}
	dirs      map[string]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a new sound file watcher.
func NewWatcher(target invalidator, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		logger: logger,
		target: target,
		paths:  make(map[string]struct{}),
		dirs:   make(map[string]struct{}),
	}
}

// Watch adds a sound file to the watch list.
func (w *Watcher) Watch(path string) {
	if path == "" {
		return
	}
	path = filepath.Clean(expandPath(path))
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.paths[path] = struct{}{}
	if _, ok := w.dirs[dir]; ok {
		return
	}
	w.dirs[dir] = struct{}{}

	if w.fsWatcher != nil {
		if err := w.fsWatcher.Add(dir); err != nil {
			w.logger.Warn("failed to watch sound directory", "dir", dir, "error", err)
		}
	}
}

// Start begins watching. It is a no-op if already running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsWatcher != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("failed to watch sound directory", "dir", dir, "error", err)
		}
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.fsWatcher = fsw
	w.done = make(chan struct{})
	go w.watch(ctx, fsw, w.done)

	w.logger.Debug("sound watcher started", "dirs", len(w.dirs))
	return nil
}

func (w *Watcher) watch(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}

			path := filepath.Clean(event.Name)
			w.mu.Lock()
			_, watched := w.paths[path]
			w.mu.Unlock()

			if watched {
				w.logger.Debug("sound file changed, invalidating cache", "path", path, "op", event.Op.String())
				w.target.InvalidateCache(path)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("sound watcher error", "error", err)
		}
	}
}

// Stop stops watching.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fsw := w.fsWatcher
	cancel := w.cancel
	done := w.done
	w.fsWatcher = nil
	w.mu.Unlock()

	if fsw == nil {
		return
	}

	cancel()
	_ = fsw.Close()
	<-done
	w.logger.Debug("sound watcher stopped")
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fsWatcher != nil
}
