// Package dbus implements the io.github.ctrltap.DoubleTap D-Bus
// interface: the daemon-side server that broadcasts Triggered signals
// and accepts TypeText calls, and the client-side reconnecting
// subscriber used by UI processes.
package dbus
