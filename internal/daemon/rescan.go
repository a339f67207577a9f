package daemon

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long to wait after a device node appears before
// probing it. udev needs a moment to apply permissions on new nodes.
const settleDelay = 500 * time.Millisecond

// DeviceWatcher watches an input device directory for new event nodes
// so keyboards plugged in after startup get monitored without a
// restart.
type DeviceWatcher struct {
	mu     sync.RWMutex
	logger *slog.Logger

	dir     string
	watcher *fsnotify.Watcher

	onAttachCallback func(path string)

	// Injection point for tests.
	settle func(d time.Duration)

	stopCh chan struct{}
	doneCh chan struct{}

	running bool
}

// NewDeviceWatcher creates a DeviceWatcher for the given directory,
// normally /dev/input.
func NewDeviceWatcher(dir string, logger *slog.Logger) (*DeviceWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	return &DeviceWatcher{
		logger:  logger,
		dir:     dir,
		watcher: watcher,
		settle:  time.Sleep,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// SetAttachCallback sets the callback to invoke when a new event node appears.
func (w *DeviceWatcher) SetAttachCallback(callback func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onAttachCallback = callback
}

// Start begins watching the device directory.
func (w *DeviceWatcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.watchLoop()

	w.logger.Debug("device watcher started", "dir", w.dir)
	return nil
}

// Stop stops watching the device directory.
func (w *DeviceWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.doneCh
	w.logger.Debug("device watcher stopped")
	return err
}

// watchLoop dispatches filesystem events until the watcher closes.
func (w *DeviceWatcher) watchLoop() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("device watcher error", "error", err)
		}
	}
}

// handleEvent reacts to a single filesystem event. Only newly created
// event nodes matter; everything else in /dev/input (mouseN, mice, the
// by-id and by-path symlink dirs) is ignored.
func (w *DeviceWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}
	if !isEventNode(event.Name) {
		return
	}

	w.mu.RLock()
	callback := w.onAttachCallback
	w.mu.RUnlock()
	if callback == nil {
		return
	}

	w.logger.Debug("input node appeared", "path", event.Name)
	w.settle(settleDelay)
	callback(event.Name)
}

// isEventNode reports whether path names an evdev event node.
func isEventNode(path string) bool {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "event") {
		return false
	}
	return len(base) > len("event")
}
