package audio

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/jmylchreest/toastd/internal/config"
)

// defaultSound is the sounds key used for types without their own entry.
const defaultSound = "default"

// Manager plays the sound configured for each notification type.
type Manager struct {
	logger  *slog.Logger
	player  *Player
	watcher *Watcher

	mu      sync.RWMutex
	enabled bool
	sounds  map[string]string // notification type -> sound file
}

// NewManager creates an audio manager for cfg. A nil cfg uses the defaults.
func NewManager(cfg *config.DaemonConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	player := NewPlayer(logger)
	m := &Manager{
		logger:  logger,
		player:  player,
		watcher: NewWatcher(player, logger),
	}
	m.apply(cfg)
	return m
}

// resolveSounds maps each configured type to an existing file.
func resolveSounds(cfg *config.DaemonConfig, logger *slog.Logger) map[string]string {
	sounds := make(map[string]string, len(cfg.Audio.Sounds))
	for notificationType := range cfg.Audio.Sounds {
		path := cfg.SoundForType(notificationType)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			logger.Warn("sound file not found", "type", notificationType, "path", path)
			continue
		}
		sounds[notificationType] = path
	}
	return sounds
}

// apply installs cfg and returns the sound files it replaced.
func (m *Manager) apply(cfg *config.DaemonConfig) []string {
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}
	sounds := resolveSounds(cfg, m.logger)

	// Config volume is 0-100, the player's 0.0-1.0.
	m.player.SetVolume(float64(cfg.Audio.Volume) / 100.0)

	m.mu.Lock()
	old := uniquePaths(m.sounds)
	m.enabled = cfg.Audio.Enabled
	m.sounds = sounds
	m.mu.Unlock()
	return old
}

func uniquePaths(sounds map[string]string) []string {
	paths := make([]string, 0, len(sounds))
	for _, p := range sounds {
		if !slices.Contains(paths, p) {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)
	return paths
}

func (m *Manager) paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uniquePaths(m.sounds)
}

// arm preloads every resolved sound and watches its file.
func (m *Manager) arm() int {
	paths := m.paths()
	for _, path := range paths {
		if err := m.player.Preload(path); err != nil {
			m.logger.Warn("failed to preload sound", "path", path, "error", err)
		}
		m.watcher.Watch(path)
	}
	return len(paths)
}

// Start preloads the sounds and starts watching their files.
func (m *Manager) Start(ctx context.Context) error {
	n := m.arm()
	if err := m.watcher.Start(ctx); err != nil {
		return err
	}
	m.logger.Info("audio manager started", "sounds", n)
	return nil
}

// Stop shuts down the audio manager.
func (m *Manager) Stop() {
	m.watcher.Stop()
	m.player.Close()
	m.logger.Debug("audio manager stopped")
}

// Enabled reports whether sounds are played at all.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// SoundFor returns the sound path for a notification type, if any.
func (m *Manager) SoundFor(notificationType string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path, ok := m.sounds[notificationType]; ok {
		return path, true
	}
	path, ok := m.sounds[defaultSound]
	return path, ok
}

// PlayForType plays the sound configured for the notification type. Types
// without a sound are silent.
func (m *Manager) PlayForType(notificationType string) error {
	if !m.Enabled() {
		return nil
	}
	path, ok := m.SoundFor(notificationType)
	if !ok {
		m.logger.Debug("no sound configured for type", "type", notificationType)
		return nil
	}
	return m.player.Play(path)
}

// PlayFile plays a specific sound file.
func (m *Manager) PlayFile(path string) error {
	if !m.Enabled() {
		return nil
	}
	return m.player.Play(path)
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (m *Manager) SetVolume(volume float64) {
	m.player.SetVolume(volume)
}

// GetVolume returns the current volume.
func (m *Manager) GetVolume() float64 {
	return m.player.GetVolume()
}

// UpdateConfig swaps in a hot-reloaded configuration: stale sounds are
// unwatched and dropped from the cache, the new ones preloaded and watched.
func (m *Manager) UpdateConfig(cfg *config.DaemonConfig) {
	for _, path := range m.apply(cfg) {
		m.watcher.Unwatch(path)
	}
	m.player.ClearCache()
	m.arm()
	m.logger.Debug("audio manager reloaded", "sounds", len(m.paths()))
}
