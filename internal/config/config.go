// Package config provides configuration loading for ctrltapd.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "300ms", "1s", "1m30s", or integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Try parsing as integer (milliseconds) for convenience
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	// Parse as duration string (e.g., "300ms", "1s", "1m30s")
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '300ms', '1s' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DaemonConfig is the configuration for ctrltapd.
// Loaded from ~/.config/ctrltap/ctrltapd.toml
type DaemonConfig struct {
	Detector DetectorConfig `toml:"detector"`
	Devices  DevicesConfig  `toml:"devices"`
	Injector InjectorConfig `toml:"injector"`
	Log      LogConfig      `toml:"log"`
}

// DetectorConfig contains double-tap detection settings.
type DetectorConfig struct {
	// Interval is the exclusive upper bound between two Ctrl releases
	// for them to count as one double tap.
	Interval Duration `toml:"interval"`
}

// DevicesConfig contains input device selection settings.
type DevicesConfig struct {
	Include []string `toml:"include"` // Explicit event device paths; empty = auto-discover
	Exclude []string `toml:"exclude"` // Device name substrings to skip
	Hotplug bool     `toml:"hotplug"` // Watch /dev/input for new keyboards
}

// InjectorConfig contains virtual keyboard settings.
type InjectorConfig struct {
	Enabled  bool     `toml:"enabled"`
	KeyDelay Duration `toml:"key_delay"` // Pacing delay between key transitions
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"` // "debug", "info", "warn", "error"
}

// ValidLogLevels returns all valid log level values.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// SlogLevel converts the configured level string to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultDaemonConfig returns a new DaemonConfig with default values.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Detector: DetectorConfig{
			Interval: Duration(300 * time.Millisecond),
		},
		Devices: DevicesConfig{
			Include: nil,
			Exclude: nil,
			Hotplug: true,
		},
		Injector: InjectorConfig{
			Enabled:  true,
			KeyDelay: Duration(10 * time.Millisecond),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DaemonConfigPath returns the path to the daemon config file.
func DaemonConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "ctrltap", "ctrltapd.toml"), nil
}

// LoadDaemonConfig loads the daemon configuration from the given path.
// An empty path means the default location. If the file doesn't exist,
// returns the default configuration.
func LoadDaemonConfig(path string) (*DaemonConfig, error) {
	if path == "" {
		var err error
		path, err = DaemonConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultDaemonConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents
	config := DefaultDaemonConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveDaemonConfig saves the daemon configuration to the given path.
// An empty path means the default location.
func SaveDaemonConfig(config *DaemonConfig, path string) error {
	if path == "" {
		var err error
		path, err = DaemonConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *DaemonConfig) Validate() error {
	if c.Detector.Interval.Duration() <= 0 {
		return fmt.Errorf("detector interval must be positive, got %s", c.Detector.Interval.Duration())
	}

	if c.Injector.KeyDelay.Duration() < 0 {
		return fmt.Errorf("injector key_delay must not be negative, got %s", c.Injector.KeyDelay.Duration())
	}

	for _, p := range c.Devices.Include {
		if !filepath.IsAbs(p) {
			return fmt.Errorf("device path %q must be absolute", p)
		}
	}

	valid := false
	for _, l := range ValidLogLevels() {
		if strings.EqualFold(c.Log.Level, l) {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid log level %q (valid: %s)", c.Log.Level, strings.Join(ValidLogLevels(), ", "))
	}

	return nil
}
