// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultTimeout    = 5000 * time.Millisecond
	DefaultMaxVisible = 5
	DefaultWidth      = 48
	DefaultVolume     = 80
	DefaultAppName    = "callhud"
	DefaultTheme      = "default"
)

// Feed formats.
const (
	FeedFormatAuto = "auto"
	FeedFormatJSON = "json"
	FeedFormatYAML = "yaml"
)

// Config represents the callhud configuration.
type Config struct {
	Notification NotificationConfig `toml:"notification"`
	Display      DisplayConfig      `toml:"display"`
	Audio        AudioConfig        `toml:"audio"`
	Desktop      DesktopConfig      `toml:"desktop"`
	Feed         FeedConfig         `toml:"feed"`
	Clipboard    ClipboardConfig    `toml:"clipboard"`
	Actions      ActionsConfig      `toml:"actions"`
}

// NotificationConfig controls the call lifecycle.
type NotificationConfig struct {
	Timeout Duration `toml:"timeout"` // e.g. "5s" or 5000
}

// DisplayConfig holds HUD rendering options.
type DisplayConfig struct {
	MaxVisible    int    `toml:"max_visible"` // Cards drawn at once; the rest are summarised
	Width         int    `toml:"width"`       // Card width in columns
	ShowPlate     bool   `toml:"show_plate"`
	ShowVehicle   bool   `toml:"show_vehicle"`
	ShowCountdown bool   `toml:"show_countdown"`
	Theme         string `toml:"theme"` // default, minimal, catppuccin
}

// AudioConfig holds alert tone settings.
type AudioConfig struct {
	Enabled bool              `toml:"enabled"`
	Volume  int               `toml:"volume"` // 0-100
	Sound   string            `toml:"sound"`  // Default alert tone
	Codes   map[string]string `toml:"codes"`  // Per-code overrides, keyed by call code
}

// DesktopConfig controls mirroring calls to the desktop notification daemon.
type DesktopConfig struct {
	Enabled bool   `toml:"enabled"`
	AppName string `toml:"app_name"`
}

// FeedConfig controls call feed decoding.
type FeedConfig struct {
	Format string `toml:"format"` // auto, json, yaml
	Filter string `toml:"filter"` // e.g. "code=10-90,location~route"
}

// ClipboardConfig holds clipboard settings.
type ClipboardConfig struct {
	Command string `toml:"command"` // Empty = auto-detect (wl-copy, xclip, xsel)
}

// ActionsConfig holds shell commands run for HUD actions. The call is
// passed in CALLHUD_* environment variables. Empty commands only log.
type ActionsConfig struct {
	Attach   string   `toml:"attach"`
	Waypoint string   `toml:"waypoint"`
	Timeout  Duration `toml:"timeout"`
}

// DefaultActionTimeout bounds an action command.
const DefaultActionTimeout = 10 * time.Second

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Notification: NotificationConfig{
			Timeout: Duration(DefaultTimeout),
		},
		Display: DisplayConfig{
			MaxVisible:    DefaultMaxVisible,
			Width:         DefaultWidth,
			ShowPlate:     true,
			ShowVehicle:   true,
			ShowCountdown: false,
			Theme:         DefaultTheme,
		},
		Audio: AudioConfig{
			Enabled: false,
			Volume:  DefaultVolume,
			Codes:   make(map[string]string),
		},
		Desktop: DesktopConfig{
			Enabled: false,
			AppName: DefaultAppName,
		},
		Feed: FeedConfig{
			Format: FeedFormatAuto,
		},
		Actions: ActionsConfig{
			Timeout: Duration(DefaultActionTimeout),
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "callhud", "callhud.toml")
}

// StatePath returns the path to the state directory (logs).
// Uses XDG_STATE_HOME if set, otherwise ~/.local/state.
func StatePath() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "callhud")
}

// LogPath returns the default log file used while the HUD owns the terminal.
func LogPath() string {
	return filepath.Join(StatePath(), "callhud.log")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed and writes atomically via a temp file.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Marshal returns the TOML encoding of the configuration.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Notification.Timeout.Duration() <= 0 {
		return fmt.Errorf("notification timeout must be positive, got %s", c.Notification.Timeout.Duration())
	}
	if c.Display.MaxVisible < 1 || c.Display.MaxVisible > 50 {
		return fmt.Errorf("max_visible must be between 1 and 50, got %d", c.Display.MaxVisible)
	}
	if c.Display.Width < 20 || c.Display.Width > 200 {
		return fmt.Errorf("width must be between 20 and 200, got %d", c.Display.Width)
	}
	if c.Display.Theme == "" {
		return errors.New("display theme must not be empty")
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}

	if c.Actions.Timeout.Duration() < 0 {
		return fmt.Errorf("action timeout must not be negative, got %s", c.Actions.Timeout.Duration())
	}

	switch c.Feed.Format {
	case FeedFormatAuto, FeedFormatJSON, FeedFormatYAML:
	default:
		return fmt.Errorf("invalid feed format %q, must be one of: auto, json, yaml", c.Feed.Format)
	}

	return nil
}

// Timeout returns the expiry delay for newly displayed calls.
func (c *Config) Timeout() time.Duration {
	return c.Notification.Timeout.Duration()
}

// SoundForCode returns the alert tone for a call code.
// Falls back to the default sound. Expands ~ to the home directory.
func (c *Config) SoundForCode(code string) string {
	path := c.Audio.Sound
	if override, ok := c.Audio.Codes[code]; ok && override != "" {
		path = override
	}
	return expandPath(path)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
