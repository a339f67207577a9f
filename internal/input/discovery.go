package input

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// Dir is where the kernel exposes input device nodes.
const Dir = "/dev/input"

// ErrNoKeyboards is returned when discovery finds no usable keyboard.
var ErrNoKeyboards = errors.New("no keyboard devices found")

// DeviceInfo identifies a discovered keyboard device.
type DeviceInfo struct {
	Path string
	Name string
}

// FindKeyboards enumerates /dev/input and returns every device that
// classifies as a keyboard. Devices that fail to open (permissions,
// vanished) are skipped. Devices whose name contains any of the exclude
// substrings are skipped; this keeps the daemon from monitoring its own
// virtual keyboard.
func FindKeyboards(exclude []string, logger *slog.Logger) ([]DeviceInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to list input devices: %w", err)
	}

	var keyboards []DeviceInfo
	for _, p := range paths {
		info, ok := probe(p.Path, exclude, logger)
		if !ok {
			continue
		}
		keyboards = append(keyboards, info)
	}

	if len(keyboards) == 0 {
		return nil, ErrNoKeyboards
	}

	return keyboards, nil
}

// Probe opens a single device path and reports whether it classifies as
// a keyboard. Used by the hot-plug watcher for newly created nodes.
func Probe(path string, exclude []string, logger *slog.Logger) (DeviceInfo, bool) {
	if logger == nil {
		logger = slog.Default()
	}
	return probe(path, exclude, logger)
}

func probe(path string, exclude []string, logger *slog.Logger) (DeviceInfo, bool) {
	dev, err := evdev.Open(path)
	if err != nil {
		logger.Debug("skipping unreadable input device", "path", path, "error", err)
		return DeviceInfo{}, false
	}
	defer dev.Close()

	name, err := dev.Name()
	if err != nil {
		name = path
	}

	if !isKeyboard(dev.CapableEvents(evdev.EV_KEY)) {
		return DeviceInfo{}, false
	}

	if matchesAny(name, exclude) {
		logger.Debug("excluding keyboard by name", "path", path, "name", name)
		return DeviceInfo{}, false
	}

	return DeviceInfo{Path: path, Name: name}, true
}

// isKeyboard reports whether a device's key capabilities look like a
// keyboard. Advertising the 'A' key is the discriminator: it filters
// out mice, power buttons and lid switches that also emit EV_KEY.
func isKeyboard(codes []evdev.EvCode) bool {
	for _, c := range codes {
		if c == evdev.KEY_A {
			return true
		}
	}
	return false
}

// matchesAny reports whether name contains any of the given substrings.
func matchesAny(name string, substrings []string) bool {
	for _, s := range substrings {
		if s != "" && strings.Contains(name, s) {
			return true
		}
	}
	return false
}
