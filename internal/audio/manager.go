package audio

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/jmylchreest/callhud/internal/config"
	"github.com/jmylchreest/callhud/internal/display"
)

// SoundPlayer plays alert sounds.
type SoundPlayer interface {
	Play(path string) error
	PlayTone() error
	Preload(path string) error
	InvalidateCache(path string)
	SetVolume(volume float64)
	Close()
}

// Manager plays an alert when a call appears on screen. Each call code may
// have its own sound; codes without one use the default sound, and if no
// usable file is configured the built-in tone plays instead.
type Manager struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	player  SoundPlayer
	watcher *Watcher
	config  *config.Config

	// Resolved sound per code; "" is the default sound
	sounds map[string]string
}

// NewManager creates an audio manager backed by the speaker.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return NewManagerWithPlayer(cfg, NewPlayer(logger), logger)
}

// NewManagerWithPlayer creates an audio manager using player.
func NewManagerWithPlayer(cfg *config.Config, player SoundPlayer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	m := &Manager{
		logger:  logger,
		player:  player,
		watcher: NewWatcher(player, logger),
		config:  cfg,
	}
	m.loadSoundConfig()
	return m
}

// loadSoundConfig resolves configured sounds, skipping files that are missing.
func (m *Manager) loadSoundConfig() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.player.SetVolume(float64(m.config.Audio.Volume) / 100.0)

	candidates := map[string]string{"": m.config.SoundForCode("")}
	for code := range m.config.Audio.Codes {
		candidates[code] = m.config.SoundForCode(code)
	}

	m.sounds = make(map[string]string, len(candidates))
	for code, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			m.logger.Warn("sound file not found", "code", code, "path", path)
			continue
		}
		m.sounds[code] = path
		m.logger.Debug("loaded sound", "code", code, "path", path)
	}
}

// Start preloads sounds when audio is enabled and starts watching them for
// changes.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.RLock()
	enabled := m.config.Audio.Enabled
	m.mu.RUnlock()

	for _, path := range m.soundPaths() {
		if enabled {
			if err := m.player.Preload(path); err != nil {
				m.logger.Warn("failed to preload sound", "path", path, "error", err)
			}
		}
		m.watcher.Watch(path)
	}

	if err := m.watcher.Start(ctx); err != nil {
		return err
	}

	m.logger.Info("audio manager started", "sounds", len(m.soundPaths()))
	return nil
}

// Stop shuts down the audio manager.
func (m *Manager) Stop() {
	m.watcher.Stop()
	m.player.Close()
	m.logger.Debug("audio manager stopped")
}

func (m *Manager) soundPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{}, len(m.sounds))
	paths := make([]string, 0, len(m.sounds))
	for _, p := range m.sounds {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	return paths
}

// HandleEvent implements display.Sink. Only newly shown calls alert.
func (m *Manager) HandleEvent(ev display.Event) {
	if ev.Type != display.EventShown {
		return
	}
	if err := m.PlayForCode(ev.Call.Code); err != nil {
		m.logger.Warn("failed to play alert", "id", ev.Call.ID, "code", ev.Call.Code, "error", err)
	}
}

// SoundFor returns the resolved sound file for a code, or "" for the
// built-in tone.
func (m *Manager) SoundFor(code string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if path, ok := m.sounds[code]; ok {
		return path
	}
	return m.sounds[""]
}

// PlayForCode plays the sound configured for a call code.
func (m *Manager) PlayForCode(code string) error {
	m.mu.RLock()
	enabled := m.config.Audio.Enabled
	m.mu.RUnlock()

	if !enabled {
		return nil
	}

	path := m.SoundFor(code)
	if path == "" {
		return m.player.PlayTone()
	}
	return m.player.Play(path)
}

// UpdateConfig swaps the configuration and reloads sounds.
// This is called when the config file is hot-reloaded.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()

	m.loadSoundConfig()
	for _, path := range m.soundPaths() {
		m.player.InvalidateCache(path)
		m.watcher.Watch(path)
	}
	m.logger.Debug("audio manager config updated")
}
