package daemon

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"ctrltap/internal/config"
)

// ConfigWatcher watches the daemon config file for changes and validates new configs.
type ConfigWatcher struct {
	mu     sync.RWMutex
	logger *slog.Logger

	// Path to watch
	configPath string

	// Last known modification time
	lastModTime time.Time

	// Current valid config
	currentConfig *config.DaemonConfig

	// Polling interval
	pollInterval time.Duration

	// Callbacks
	onReloadCallback func(newConfig *config.DaemonConfig)
	onErrorCallback  func(err error)

	// Control channels
	stopCh chan struct{}
	doneCh chan struct{}

	running bool
}

// NewConfigWatcher creates a new ConfigWatcher for the daemon config
// file. An empty configPath resolves to the default location at Start.
func NewConfigWatcher(configPath string, logger *slog.Logger) *ConfigWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigWatcher{
		logger:       logger,
		configPath:   configPath,
		pollInterval: 1 * time.Second, // Poll every second
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// SetPollInterval sets the polling interval for file changes.
func (w *ConfigWatcher) SetPollInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pollInterval = interval
}

// SetReloadCallback sets the callback to invoke when config is successfully reloaded.
func (w *ConfigWatcher) SetReloadCallback(callback func(newConfig *config.DaemonConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReloadCallback = callback
}

// SetErrorCallback sets the callback to invoke when config reload fails validation.
func (w *ConfigWatcher) SetErrorCallback(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onErrorCallback = callback
}

// Start begins watching the config file for changes.
func (w *ConfigWatcher) Start(ctx context.Context, initialConfig *config.DaemonConfig) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	if w.configPath == "" {
		path, err := config.DaemonConfigPath()
		if err != nil {
			w.mu.Unlock()
			return err
		}
		w.configPath = path
	}

	w.running = true
	w.currentConfig = initialConfig

	// Get initial modification time
	if info, err := os.Stat(w.configPath); err == nil {
		w.lastModTime = info.ModTime()
	}

	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.watchLoop(ctx)

	w.logger.Debug("config watcher started", "path", w.configPath, "interval", w.pollInterval)
	return nil
}

// Stop stops watching the config file.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	// Wait for goroutine to finish
	<-w.doneCh
	w.logger.Debug("config watcher stopped")
}

// GetCurrentConfig returns the current valid configuration.
func (w *ConfigWatcher) GetCurrentConfig() *config.DaemonConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.currentConfig
}

// watchLoop is the main polling loop.
func (w *ConfigWatcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.checkForChanges()
		}
	}
}

// checkForChanges checks if the config file has been modified.
func (w *ConfigWatcher) checkForChanges() {
	w.mu.RLock()
	reloadCallback := w.onReloadCallback
	errorCallback := w.onErrorCallback
	lastModTime := w.lastModTime
	configPath := w.configPath
	w.mu.RUnlock()

	info, err := os.Stat(configPath)
	if err != nil {
		// File might not exist yet or was deleted
		if !os.IsNotExist(err) {
			w.logger.Debug("failed to stat config file", "path", configPath, "error", err)
		}
		return
	}

	modTime := info.ModTime()
	if modTime.After(lastModTime) {
		w.mu.Lock()
		w.lastModTime = modTime
		w.mu.Unlock()

		w.logger.Debug("config file changed", "path", configPath, "modTime", modTime)

		// The running config stays in effect if the new one is invalid.
		newConfig, err := config.LoadDaemonConfig(configPath)
		if err != nil {
			w.logger.Warn("config file changed but validation failed", "error", err)
			if errorCallback != nil {
				errorCallback(err)
			}
			return
		}

		w.mu.Lock()
		w.currentConfig = newConfig
		w.mu.Unlock()

		w.logger.Info("config reloaded successfully")
		if reloadCallback != nil {
			reloadCallback(newConfig)
		}
	}
}
