// Package input discovers keyboard devices under /dev/input and runs
// one monitor goroutine per device, forwarding Ctrl release events to
// the shared double-tap detector.
package input
