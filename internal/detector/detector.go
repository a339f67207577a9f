// Package detector implements double-tap detection over Ctrl release events.
//
// All device monitors of one daemon share a single Detector, so a tap on
// one keyboard followed quickly by a tap on another still counts as one
// gesture. The only shared state is the timestamp of the last Ctrl
// release, guarded by a mutex held just for the compare-and-clear step.
package detector

import (
	"crypto/rand"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultInterval is the exclusive upper bound between two Ctrl releases
// for them to count as one double tap.
const DefaultInterval = 300 * time.Millisecond

// Gesture describes one detected double tap.
type Gesture struct {
	// ID is a ULID identifying this gesture in logs.
	ID string
	// Device is the name of the device that produced the second release.
	Device string
	// Interval is the time between the two releases.
	Interval time.Duration
}

// Handler is called when a double tap is detected.
type Handler func(g Gesture)

// Detector consumes Ctrl release events from any number of device
// monitors and decides when two releases form a double tap.
type Detector struct {
	mu       sync.Mutex
	last     time.Time
	hasLast  bool
	interval time.Duration

	handler Handler
	logger  *slog.Logger
}

// New creates a Detector firing the given handler on detection.
func New(interval time.Duration, handler Handler, logger *slog.Logger) *Detector {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		interval: interval,
		handler:  handler,
		logger:   logger,
	}
}

// Interval returns the current detection interval.
func (d *Detector) Interval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interval
}

// SetInterval updates the detection interval. Used by config hot-reload.
func (d *Detector) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	d.mu.Lock()
	d.interval = interval
	d.mu.Unlock()
}

// Release records a Ctrl release observed on the named device at the
// given instant and reports whether it completed a double tap.
//
// A release within the interval of the previous one fires the handler
// and consumes the pair: the state resets so a third release starts a
// fresh baseline instead of re-triggering. A release at or beyond the
// interval simply becomes the new baseline.
func (d *Detector) Release(device string, now time.Time) bool {
	d.mu.Lock()

	if d.hasLast {
		interval := now.Sub(d.last)
		if interval < d.interval {
			d.hasLast = false
			d.mu.Unlock()

			g := Gesture{
				ID:       newGestureID(),
				Device:   device,
				Interval: interval,
			}
			d.logger.Info("double tap detected",
				"gesture", g.ID,
				"device", device,
				"interval", interval,
			)
			if d.handler != nil {
				d.handler(g)
			}
			return true
		}
		d.logger.Debug("release outside interval, new baseline",
			"device", device,
			"interval", interval,
		)
	} else {
		d.logger.Debug("first release, new baseline", "device", device)
	}

	d.last = now
	d.hasLast = true
	d.mu.Unlock()
	return false
}

// Reset clears any pending release baseline.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.hasLast = false
	d.mu.Unlock()
}

// newGestureID generates a ULID for log correlation.
func newGestureID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return ""
	}
	return id.String()
}
