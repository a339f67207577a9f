package dbus

import "time"

// Backoff default bounds for the reconnecting subscriber.
const (
	BackoffMin = 1 * time.Second
	BackoffMax = 30 * time.Second
)

// Backoff is a retry delay that doubles after each consecutive failure,
// capped at a maximum, and resets to the minimum after a success.
// Not safe for concurrent use; each retry loop owns its own Backoff.
type Backoff struct {
	min  time.Duration
	max  time.Duration
	next time.Duration
}

// NewBackoff creates a Backoff with the given bounds. Non-positive
// values fall back to the defaults.
func NewBackoff(min, max time.Duration) *Backoff {
	if min <= 0 {
		min = BackoffMin
	}
	if max < min {
		max = BackoffMax
	}
	return &Backoff{min: min, max: max, next: min}
}

// Next returns the delay to wait before the next attempt and advances
// the state: the following delay is doubled, capped at the maximum.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

// Reset returns the delay to the minimum. Called after a success.
func (b *Backoff) Reset() {
	b.next = b.min
}
