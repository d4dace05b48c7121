package daemon

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/toastd/internal/config"
)

// reloadDebounce collapses the burst of events an editor save produces.
const reloadDebounce = 100 * time.Millisecond

// ConfigWatcher reloads the daemon configuration when its file changes.
type ConfigWatcher struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	path    string
	current *config.DaemonConfig

	onReload func(old, updated *config.DaemonConfig)
	onError  func(err error)

	watcher *fsnotify.Watcher
	pending *time.Timer
	done    chan struct{}
	running bool
}

// NewConfigWatcher creates a watcher for the config file at path.
func NewConfigWatcher(path string, logger *slog.Logger) *ConfigWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigWatcher{
		logger: logger,
		path:   path,
	}
}

// SetReloadCallback sets the function called with the old and new config after
// a successful reload.
func (w *ConfigWatcher) SetReloadCallback(fn func(old, updated *config.DaemonConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// SetErrorCallback sets the function called when the changed file fails to load.
func (w *ConfigWatcher) SetErrorCallback(fn func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Start begins watching. The watch stops when ctx is done or Stop is called.
// The directory is watched rather than the file so atomic renames are seen.
func (w *ConfigWatcher) Start(ctx context.Context, initial *config.DaemonConfig) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Unlock()
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.current = initial
	w.done = make(chan struct{})
	w.running = true
	w.mu.Unlock()

	go w.watch(ctx, watcher, w.done)
	w.logger.Debug("config watcher started", "path", w.path)
	return nil
}

func (w *ConfigWatcher) watch(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	filename := filepath.Base(w.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.scheduleReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-ctx.Done():
			_ = w.Stop()
			return

		case <-done:
			return
		}
	}
}

func (w *ConfigWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *ConfigWatcher) reload() {
	updated, err := config.LoadDaemonConfig(w.path)

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	onReload, onError := w.onReload, w.onError
	old := w.current
	if err == nil {
		w.current = updated
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("failed to reload config", "path", w.path, "error", err)
		if onError != nil {
			onError(err)
		}
		return
	}

	w.logger.Info("config reloaded", "path", w.path)
	if onReload != nil {
		onReload(old, updated)
	}
}

// Current returns the last successfully loaded config.
func (w *ConfigWatcher) Current() *config.DaemonConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop stops watching.
func (w *ConfigWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	if w.pending != nil {
		w.pending.Stop()
	}
	close(w.done)

	err := w.watcher.Close()
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}
