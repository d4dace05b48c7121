package audio

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type cacheInvalidator interface {
	InvalidateCache(path string)
}

// Watcher drops cached sounds whose files change on disk.
type Watcher struct {
	mu     sync.Mutex
	logger *slog.Logger
	cache  cacheInvalidator

	paths map[string]struct{} // Watched sound files
	dirs  map[string]struct{} // Directories added to the fsnotify watcher

	watcher *fsnotify.Watcher
	done    chan struct{}
	running bool
}

// NewWatcher creates a sound file watcher for the player's cache.
func NewWatcher(cache cacheInvalidator, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		logger: logger,
		cache:  cache,
		paths:  make(map[string]struct{}),
		dirs:   make(map[string]struct{}),
	}
}

// Watch adds a sound file. Its directory is watched so replaced files are seen.
func (w *Watcher) Watch(path string) {
	if path == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.paths[path] = struct{}{}
	if w.running {
		w.addDirLocked(filepath.Dir(path))
	}
}

// Unwatch removes a sound file from the watch list.
func (w *Watcher) Unwatch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.paths, path)
}

func (w *Watcher) addDirLocked(dir string) {
	if _, ok := w.dirs[dir]; ok {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("failed to watch sound directory", "dir", dir, "error", err)
		return
	}
	w.dirs[dir] = struct{}{}
}

// Start begins watching the sound files.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher
	w.done = make(chan struct{})
	w.dirs = make(map[string]struct{})
	w.running = true

	for path := range w.paths {
		w.addDirLocked(filepath.Dir(path))
	}

	go w.watchLoop(ctx, watcher, w.done)

	w.logger.Debug("audio watcher started", "files", len(w.paths))
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.changed(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("audio watcher error", "error", err)

		case <-ctx.Done():
			w.Stop()
			return

		case <-done:
			return
		}
	}
}

func (w *Watcher) changed(path string) {
	w.mu.Lock()
	_, ok := w.paths[path]
	w.mu.Unlock()

	if ok && w.cache != nil {
		w.logger.Debug("audio file changed, invalidating cache", "path", path)
		w.cache.InvalidateCache(path)
	}
}

// Stop stops watching sound files.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.done)
	_ = w.watcher.Close()
	w.logger.Debug("audio watcher stopped")
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
