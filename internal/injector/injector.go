// Package injector synthesizes keystrokes through a uinput virtual
// keyboard. The device registers only the four key codes the paste
// sequence uses, so it cannot be mistaken for a full keyboard.
package injector

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	evdev "github.com/holoplot/go-evdev"
)

// DeviceName is the name the virtual device registers under.
const DeviceName = "ctrltap virtual keyboard"

// DefaultKeyDelay is the pacing delay between key transitions. Without
// it some toolkits coalesce or drop the synthetic events.
const DefaultKeyDelay = 10 * time.Millisecond

// ErrUnavailable is returned by TypeText handling when the virtual
// device could not be created at startup.
var ErrUnavailable = errors.New("virtual keyboard unavailable")

// Key transition values.
const (
	press   = 1
	release = 0
)

// transition is one key state change in an injection sequence.
type transition struct {
	code  evdev.EvCode
	value int32
}

// pasteSequence is Ctrl+Shift+V followed by Enter. Ctrl+Shift+V pastes
// in terminal emulators, where plain Ctrl+V does not, and forces
// plain-text paste in GUI fields. The trailing Enter submits
// prompt-style consumers.
var pasteSequence = []transition{
	{evdev.KEY_LEFTCTRL, press},
	{evdev.KEY_LEFTSHIFT, press},
	{evdev.KEY_V, press},
	{evdev.KEY_V, release},
	{evdev.KEY_LEFTSHIFT, release},
	{evdev.KEY_LEFTCTRL, release},
	{evdev.KEY_ENTER, press},
	{evdev.KEY_ENTER, release},
}

// eventWriter is the subset of *evdev.InputDevice the injector writes to.
type eventWriter interface {
	WriteOne(ev *evdev.InputEvent) error
	Close() error
}

// Injector owns the virtual keyboard for the process lifetime.
type Injector struct {
	mu     sync.Mutex
	dev    eventWriter
	delay  time.Duration
	logger *slog.Logger

	// Injection point for tests.
	sleep func(d time.Duration)
}

// New creates the virtual keyboard device. Creation fails if /dev/uinput
// is missing or not writable; the caller should keep running without
// injection in that case.
func New(keyDelay time.Duration, logger *slog.Logger) (*Injector, error) {
	capabilities := map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {
			evdev.KEY_LEFTCTRL,
			evdev.KEY_LEFTSHIFT,
			evdev.KEY_V,
			evdev.KEY_ENTER,
		},
	}

	dev, err := evdev.CreateDevice(
		DeviceName,
		evdev.InputID{
			BusType: evdev.BUS_VIRTUAL,
			Vendor:  0x1,
			Product: 0x1,
			Version: 1,
		},
		capabilities,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create virtual keyboard: %w", err)
	}

	inj := newWithWriter(dev, keyDelay, logger)
	inj.logger.Info("virtual keyboard created", "name", DeviceName)
	return inj, nil
}

func newWithWriter(dev eventWriter, keyDelay time.Duration, logger *slog.Logger) *Injector {
	if keyDelay <= 0 {
		keyDelay = DefaultKeyDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Injector{
		dev:    dev,
		delay:  keyDelay,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// SetKeyDelay updates the pacing delay. Used by config hot-reload.
func (i *Injector) SetKeyDelay(d time.Duration) {
	if d <= 0 {
		return
	}
	i.mu.Lock()
	i.delay = d
	i.mu.Unlock()
}

// PasteAndSubmit emits the paste sequence: press Ctrl, Shift, V, then
// release V, Shift, Ctrl, then press and release Enter. The eight
// transitions are paced by the configured delay. A failure mid-sequence
// aborts the remainder and is returned; it is not retried, since a
// retry could leave a modifier stuck down in the focused window.
func (i *Injector) PasteAndSubmit() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.logger.Debug("injecting paste sequence")

	for n, tr := range pasteSequence {
		if n > 0 {
			i.sleep(i.delay)
		}
		if err := i.emitKey(tr.code, tr.value); err != nil {
			return fmt.Errorf("failed to emit transition %d of %d: %w", n+1, len(pasteSequence), err)
		}
	}

	i.logger.Info("paste sequence injected")
	return nil
}

// emitKey writes one key transition followed by a SYN_REPORT so the
// kernel flushes it to readers immediately.
func (i *Injector) emitKey(code evdev.EvCode, value int32) error {
	key := &evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: value}
	if err := i.dev.WriteOne(key); err != nil {
		return err
	}

	syn := &evdev.InputEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT, Value: 0}
	return i.dev.WriteOne(syn)
}

// Close destroys the virtual device.
func (i *Injector) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dev.Close()
}
