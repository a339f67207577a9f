package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"golang.org/x/sys/unix"

	"ctrltap/internal/detector"
)

// retryDelay is how long a monitor waits after a transient read error.
const retryDelay = 100 * time.Millisecond

// Key transition values in the evdev protocol.
const (
	keyReleased = 0
	keyPressed  = 1
	keyRepeat   = 2
)

// Device is the subset of *evdev.InputDevice a monitor reads from.
type Device interface {
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// Monitor reads raw input events from one keyboard device and forwards
// Ctrl release events to the shared detector. Reads block indefinitely;
// each monitor runs on its own goroutine so a quiet device stalls
// nothing else.
type Monitor struct {
	path     string
	name     string
	detector *detector.Detector
	logger   *slog.Logger

	// Injection points for tests.
	open  func(path string) (Device, error)
	sleep func(d time.Duration)
	now   func() time.Time
}

// NewMonitor creates a monitor for the device at path.
func NewMonitor(info DeviceInfo, det *detector.Detector, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		path:     info.Path,
		name:     info.Name,
		detector: det,
		logger:   logger.With("device", info.Name),
		open: func(path string) (Device, error) {
			return evdev.Open(path)
		},
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// Path returns the device path this monitor reads from.
func (m *Monitor) Path() string {
	return m.path
}

// Name returns the device name this monitor reads from.
func (m *Monitor) Name() string {
	return m.name
}

// Run reads the device's event stream until the context is cancelled or
// the device fails fatally. Transient read errors are logged and retried
// after a short delay; a fatal error (device removed) ends only this
// monitor and is returned so the caller can drop it from bookkeeping.
func (m *Monitor) Run(ctx context.Context) error {
	dev, err := m.open(m.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", m.path, err)
	}
	defer dev.Close()

	// Close unblocks a pending ReadOne when the daemon shuts down. The
	// done channel releases the closer when the monitor exits first, on
	// a fatal device error.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			dev.Close()
		case <-done:
		}
	}()

	m.logger.Info("monitoring started", "path", m.path)

	for {
		ev, err := dev.ReadOne()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isFatalReadError(err) {
				m.logger.Error("device lost, monitor exiting", "path", m.path, "error", err)
				return fmt.Errorf("device %s lost: %w", m.path, err)
			}
			m.logger.Warn("transient read error, retrying", "error", err)
			m.sleep(retryDelay)
			continue
		}

		if ev.Type != evdev.EV_KEY {
			continue
		}
		if ev.Code != evdev.KEY_LEFTCTRL && ev.Code != evdev.KEY_RIGHTCTRL {
			continue
		}

		switch ev.Value {
		case keyPressed:
			m.logger.Debug("ctrl pressed", "code", ev.Code)
		case keyReleased:
			m.logger.Debug("ctrl released", "code", ev.Code)
			m.detector.Release(m.name, m.now())
		case keyRepeat:
			// Holding Ctrl produces autorepeat events; not a transition.
		}
	}
}

// isFatalReadError reports whether a read error means the device is gone
// for good, as opposed to a transient failure worth retrying.
func isFatalReadError(err error) bool {
	return errors.Is(err, unix.ENODEV) ||
		errors.Is(err, unix.ENXIO) ||
		errors.Is(err, unix.EBADF) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.EOF)
}
