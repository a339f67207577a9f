// Package main is the entry point for the ctrltapd hotkey daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ctrltap/internal/config"
	"ctrltap/internal/daemon"
	"ctrltap/internal/injector"
	"ctrltap/internal/input"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/ctrltap/ctrltapd.toml)")
	listDevices := flag.Bool("list-devices", false, "List detected keyboard devices and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("ctrltapd version", version)
		os.Exit(0)
	}

	cfg, err := config.LoadDaemonConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ctrltapd:", err)
		os.Exit(1)
	}

	// The level var lets config hot-reload change verbosity at runtime.
	level := &slog.LevelVar{}
	level.Set(cfg.Log.SlogLevel())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if *listDevices {
		runListDevices(cfg, logger)
		return
	}

	logger.Info("starting ctrltapd", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	d := daemon.New(cfg, *configPath, version, logger, level)
	if err := d.Run(ctx); err != nil {
		if errors.Is(err, input.ErrNoKeyboards) {
			logger.Error("no keyboard devices found; is the user in the input group?")
		} else {
			logger.Error("daemon failed", "error", err)
		}
		os.Exit(1)
	}

	logger.Info("ctrltapd stopped")
}

// runListDevices prints the keyboards discovery would monitor.
func runListDevices(cfg *config.DaemonConfig, logger *slog.Logger) {
	exclude := append([]string{injector.DeviceName}, cfg.Devices.Exclude...)
	devices, err := input.FindKeyboards(exclude, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ctrltapd:", err)
		os.Exit(1)
	}
	for _, dev := range devices {
		fmt.Printf("%s\t%s\n", dev.Path, dev.Name)
	}
}
