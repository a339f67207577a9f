package daemon

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"ctrltap/internal/config"
	"ctrltap/internal/detector"
	"ctrltap/internal/injector"
	"ctrltap/internal/input"
)

func TestTypeTextWithoutInjector(t *testing.T) {
	d := New(config.DefaultDaemonConfig(), "", "test", testLogger(), nil)

	err := d.typeText()
	assert.ErrorIs(t, err, injector.ErrUnavailable)
}

func TestDeviceNamesSorted(t *testing.T) {
	d := New(config.DefaultDaemonConfig(), "", "test", testLogger(), nil)
	d.detector = detector.New(0, nil, testLogger())

	assert.Empty(t, d.deviceNames())

	for _, info := range []input.DeviceInfo{
		{Path: "/dev/input/event3", Name: "Logitech K380"},
		{Path: "/dev/input/event0", Name: "AT Translated Set 2 keyboard"},
	} {
		d.monitors[info.Path] = input.NewMonitor(info, d.detector, testLogger())
	}

	assert.Equal(t, []string{"AT Translated Set 2 keyboard", "Logitech K380"}, d.deviceNames())
}

// Exercised under -race: a hot-plug must read the config through the
// mutex while a reload swaps the pointer.
func TestAttachDeviceConcurrentWithReload(t *testing.T) {
	d := New(config.DefaultDaemonConfig(), "", "test", testLogger(), nil)
	d.detector = detector.New(0, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			cfg := config.DefaultDaemonConfig()
			cfg.Devices.Exclude = []string{"virtual"}
			d.applyConfig(cfg)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			d.attachDevice(ctx, "/nonexistent/event0")
		}
	}()
	wg.Wait()

	assert.Equal(t, []string{injector.DeviceName, "virtual"}, d.excludeNames())
}

func TestApplyConfigUpdatesDetector(t *testing.T) {
	d := New(config.DefaultDaemonConfig(), "", "test", testLogger(), nil)
	d.detector = detector.New(0, nil, testLogger())

	cfg := config.DefaultDaemonConfig()
	cfg.Detector.Interval = config.Duration(detector.DefaultInterval * 2)
	d.applyConfig(cfg)

	assert.Equal(t, detector.DefaultInterval*2, d.detector.Interval())
	assert.Equal(t, cfg, d.cfg)
}
