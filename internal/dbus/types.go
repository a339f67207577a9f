package dbus

import "time"

const (
	// BusName is the well-known service name the daemon claims.
	BusName = "io.github.ctrltap"
	// ObjectPath is the object path the interface lives on.
	ObjectPath = "/io/github/ctrltap/DoubleTap"
	// Interface is the (versionless) interface name.
	Interface = "io.github.ctrltap.DoubleTap"

	// SignalTriggered is the zero-payload double-tap broadcast.
	SignalTriggered = Interface + ".Triggered"
	// SignalAlwaysOnTop is the advisory window-pin broadcast. It is
	// published by the UI side; the daemon only lists it in
	// introspection so subscribers can discover it.
	SignalAlwaysOnTop = Interface + ".SetAlwaysOnTop"
)

// Status describes the daemon's runtime state as returned by the
// Status D-Bus method.
type Status struct {
	Version       string
	StartedAt     time.Time
	TriggerCount  uint64
	Devices       []string
	InjectorReady bool
}
