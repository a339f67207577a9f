// Package daemon provides the main orchestration for ctrltapd.
// It wires device discovery, the per-device monitors, the shared
// double-tap detector, the virtual keyboard injector and the D-Bus
// server together, and handles configuration hot-reload and device
// hot-plug.
package daemon
