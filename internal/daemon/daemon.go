package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"ctrltap/internal/config"
	"ctrltap/internal/dbus"
	"ctrltap/internal/detector"
	"ctrltap/internal/injector"
	"ctrltap/internal/input"
)

// Daemon runs the double-tap detection pipeline for the process
// lifetime: physical key events flow from the monitors into the shared
// detector, detections are broadcast over the bus, and TypeText calls
// flow back into the injector.
type Daemon struct {
	cfg        *config.DaemonConfig
	configPath string
	version    string
	logger     *slog.Logger
	logLevel   *slog.LevelVar

	detector *detector.Detector
	server   *dbus.Server
	injector *injector.Injector

	mu       sync.Mutex
	monitors map[string]*input.Monitor // keyed by device path
	wg       sync.WaitGroup
}

// New creates a Daemon. configPath is the file watched for hot-reload
// (empty = default location). logLevel may be nil if runtime level
// changes are not wanted.
func New(cfg *config.DaemonConfig, configPath, version string, logger *slog.Logger, logLevel *slog.LevelVar) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		cfg:        cfg,
		configPath: configPath,
		version:    version,
		logger:     logger,
		logLevel:   logLevel,
		monitors:   make(map[string]*input.Monitor),
	}
}

// Run starts all components and blocks until the context is cancelled.
// Finding no keyboard and failing to claim the bus name are fatal;
// everything else is recovered or isolated per device.
func (d *Daemon) Run(ctx context.Context) error {
	devices, err := d.discover()
	if err != nil {
		return err
	}
	for n, dev := range devices {
		d.logger.Info("keyboard found", "index", n, "path", dev.Path, "name", dev.Name)
	}

	d.detector = detector.New(d.cfg.Detector.Interval.Duration(), d.onGesture, d.logger)

	if d.cfg.Injector.Enabled {
		inj, err := injector.New(d.cfg.Injector.KeyDelay.Duration(), d.logger)
		if err != nil {
			// Detection keeps running; TypeText will report failure.
			d.logger.Warn("virtual keyboard unavailable, TypeText disabled", "error", err)
		} else {
			d.injector = inj
			defer inj.Close()
		}
	}

	d.server = dbus.NewServer(d.version, d.logger)
	d.server.SetTypeTextHandler(d.typeText)
	d.server.SetDeviceLister(d.deviceNames)
	d.server.SetInjectorReady(func() bool { return d.injector != nil })
	if err := d.server.Start(); err != nil {
		return fmt.Errorf("failed to start D-Bus server: %w", err)
	}
	defer func() { _ = d.server.Stop() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, dev := range devices {
		d.startMonitor(runCtx, dev)
	}

	configWatcher := NewConfigWatcher(d.configPath, d.logger)
	configWatcher.SetReloadCallback(d.applyConfig)
	if err := configWatcher.Start(runCtx, d.cfg); err != nil {
		d.logger.Warn("failed to start config watcher", "error", err)
	} else {
		defer configWatcher.Stop()
	}

	var deviceWatcher *DeviceWatcher
	if d.cfg.Devices.Hotplug {
		dw, err := NewDeviceWatcher(input.Dir, d.logger)
		if err != nil {
			d.logger.Warn("failed to start device watcher, hot-plug disabled", "error", err)
		} else {
			dw.SetAttachCallback(func(path string) {
				d.attachDevice(runCtx, path)
			})
			if err := dw.Start(); err != nil {
				d.logger.Warn("failed to start device watcher, hot-plug disabled", "error", err)
			} else {
				deviceWatcher = dw
			}
		}
	}

	d.logger.Info("ctrltapd ready",
		"devices", len(devices),
		"interval", d.detector.Interval(),
		"injector", d.injector != nil,
	)

	<-ctx.Done()
	d.logger.Info("shutting down")
	cancel()
	// The watcher must be stopped before Wait: a hot-plug arriving
	// mid-shutdown would otherwise Add to a waited-on WaitGroup.
	if deviceWatcher != nil {
		_ = deviceWatcher.Stop()
	}
	d.wg.Wait()
	return nil
}

// excludeNames snapshots the configured exclude list. The daemon's own
// virtual keyboard is always excluded so injected events cannot feed
// back into detection.
func (d *Daemon) excludeNames() []string {
	d.mu.Lock()
	cfg := d.cfg
	d.mu.Unlock()
	return append([]string{injector.DeviceName}, cfg.Devices.Exclude...)
}

// discover resolves the monitored device set: explicit include paths
// when configured, full discovery otherwise.
func (d *Daemon) discover() ([]input.DeviceInfo, error) {
	exclude := d.excludeNames()

	if len(d.cfg.Devices.Include) > 0 {
		var devices []input.DeviceInfo
		for _, path := range d.cfg.Devices.Include {
			info, ok := input.Probe(path, exclude, d.logger)
			if !ok {
				d.logger.Warn("configured device not usable, skipping", "path", path)
				continue
			}
			devices = append(devices, info)
		}
		if len(devices) == 0 {
			return nil, input.ErrNoKeyboards
		}
		return devices, nil
	}

	return input.FindKeyboards(exclude, d.logger)
}

// startMonitor spawns the monitor goroutine for one device and tracks
// it until it exits. A fatal device error ends only that monitor.
func (d *Daemon) startMonitor(ctx context.Context, dev input.DeviceInfo) {
	m := input.NewMonitor(dev, d.detector, d.logger)

	d.mu.Lock()
	if _, exists := d.monitors[dev.Path]; exists {
		d.mu.Unlock()
		return
	}
	d.monitors[dev.Path] = m
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := m.Run(ctx); err != nil {
			d.logger.Error("monitor exited", "path", dev.Path, "device", dev.Name, "error", err)
		}
		d.mu.Lock()
		delete(d.monitors, dev.Path)
		d.mu.Unlock()
	}()
}

// attachDevice handles a hot-plugged input node.
func (d *Daemon) attachDevice(ctx context.Context, path string) {
	d.mu.Lock()
	_, exists := d.monitors[path]
	d.mu.Unlock()
	if exists {
		return
	}

	info, ok := input.Probe(path, d.excludeNames(), d.logger)
	if !ok {
		return
	}

	d.logger.Info("keyboard hot-plugged", "path", info.Path, "name", info.Name)
	d.startMonitor(ctx, info)
}

// onGesture broadcasts a detection. Undelivered broadcasts are not
// errors; a failed emit only gets a log line.
func (d *Daemon) onGesture(g detector.Gesture) {
	if err := d.server.EmitTriggered(); err != nil {
		d.logger.Warn("failed to broadcast detection", "gesture", g.ID, "error", err)
	}
}

// typeText is the TypeText method handler: synchronous injection.
func (d *Daemon) typeText() error {
	if d.injector == nil {
		return injector.ErrUnavailable
	}
	return d.injector.PasteAndSubmit()
}

// deviceNames returns the names of currently monitored devices.
func (d *Daemon) deviceNames() []string {
	d.mu.Lock()
	names := make([]string, 0, len(d.monitors))
	for _, m := range d.monitors {
		names = append(names, m.Name())
	}
	d.mu.Unlock()

	sort.Strings(names)
	return names
}

// applyConfig applies a hot-reloaded configuration to the running
// components. Device selection changes still require a restart.
func (d *Daemon) applyConfig(cfg *config.DaemonConfig) {
	d.detector.SetInterval(cfg.Detector.Interval.Duration())
	if d.injector != nil {
		d.injector.SetKeyDelay(cfg.Injector.KeyDelay.Duration())
	}
	if d.logLevel != nil {
		d.logLevel.Set(cfg.Log.SlogLevel())
	}

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	d.logger.Info("configuration reloaded",
		"interval", cfg.Detector.Interval.Duration(),
		"key_delay", cfg.Injector.KeyDelay.Duration(),
		"log_level", cfg.Log.Level,
	)
}
