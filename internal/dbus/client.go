package dbus

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// CallTypeText invokes the daemon's TypeText method synchronously.
// There is no return payload; a D-Bus error reports injection failure.
func CallTypeText() error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	call := conn.Object(BusName, ObjectPath).Call(Interface+".TypeText", 0)
	if call.Err != nil {
		return fmt.Errorf("TypeText failed: %w", call.Err)
	}
	return nil
}

// GetStatus queries the daemon's Status method.
func GetStatus() (*Status, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	var (
		version     string
		startedUnix int64
		triggers    uint64
		devices     []string
		ready       bool
	)
	call := conn.Object(BusName, ObjectPath).Call(Interface+".Status", 0)
	if err := call.Store(&version, &startedUnix, &triggers, &devices, &ready); err != nil {
		return nil, fmt.Errorf("Status failed (is ctrltapd running?): %w", err)
	}

	return &Status{
		Version:       version,
		StartedAt:     time.Unix(startedUnix, 0),
		TriggerCount:  triggers,
		Devices:       devices,
		InjectorReady: ready,
	}, nil
}

// PublishAlwaysOnTop broadcasts the advisory window-pin state.
// Fire-and-forget: nothing acknowledges it and no one needs to be
// listening.
func PublishAlwaysOnTop(pinned bool) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.Emit(ObjectPath, SignalAlwaysOnTop, pinned); err != nil {
		return fmt.Errorf("failed to emit SetAlwaysOnTop signal: %w", err)
	}
	return nil
}
