package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleaseWithinInterval(t *testing.T) {
	tests := []struct {
		name     string
		offsets  []time.Duration
		expected int
	}{
		{name: "fast pair fires", offsets: []time.Duration{0, 100 * time.Millisecond}, expected: 1},
		{name: "just under threshold fires", offsets: []time.Duration{0, 299 * time.Millisecond}, expected: 1},
		{name: "exactly threshold does not fire", offsets: []time.Duration{0, 300 * time.Millisecond}, expected: 0},
		{name: "above threshold does not fire", offsets: []time.Duration{0, 301 * time.Millisecond}, expected: 0},
		{name: "single release does not fire", offsets: []time.Duration{0}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fired []Gesture
			d := New(300*time.Millisecond, func(g Gesture) { fired = append(fired, g) }, nil)

			base := time.Unix(1000, 0)
			for _, off := range tt.offsets {
				d.Release("test-kbd", base.Add(off))
			}

			assert.Len(t, fired, tt.expected)
		})
	}
}

func TestDetectionConsumesPair(t *testing.T) {
	var fired []Gesture
	d := New(300*time.Millisecond, func(g Gesture) { fired = append(fired, g) }, nil)

	base := time.Unix(1000, 0)

	// Three releases 100ms apart: pair 1-2 fires, release 3 must start a
	// fresh baseline rather than pairing with release 2.
	assert.False(t, d.Release("kbd", base))
	assert.True(t, d.Release("kbd", base.Add(100*time.Millisecond)))
	assert.False(t, d.Release("kbd", base.Add(200*time.Millisecond)))

	require.Len(t, fired, 1)
	assert.Equal(t, 100*time.Millisecond, fired[0].Interval)

	// A fourth release close to the third pairs with it.
	assert.True(t, d.Release("kbd", base.Add(250*time.Millisecond)))
	assert.Len(t, fired, 2)
}

func TestStaleBaselineOverwritten(t *testing.T) {
	var count int
	d := New(300*time.Millisecond, func(Gesture) { count++ }, nil)

	base := time.Unix(1000, 0)

	// 0ms then 301ms: no detection, the second release is the new baseline.
	d.Release("kbd", base)
	d.Release("kbd", base.Add(301*time.Millisecond))
	assert.Equal(t, 0, count)

	// A release within the interval of the new baseline fires.
	assert.True(t, d.Release("kbd", base.Add(400*time.Millisecond)))
	assert.Equal(t, 1, count)
}

func TestCrossDeviceDetection(t *testing.T) {
	var fired []Gesture
	d := New(300*time.Millisecond, func(g Gesture) { fired = append(fired, g) }, nil)

	base := time.Unix(1000, 0)

	// Ctrl release on keyboard A at t=0, on keyboard B at t=200ms:
	// exactly one detection spanning both devices.
	d.Release("keyboard-a", base)
	d.Release("keyboard-b", base.Add(200*time.Millisecond))

	require.Len(t, fired, 1)
	assert.Equal(t, "keyboard-b", fired[0].Device)
	assert.Equal(t, 200*time.Millisecond, fired[0].Interval)
}

func TestGestureID(t *testing.T) {
	var fired []Gesture
	d := New(300*time.Millisecond, func(g Gesture) { fired = append(fired, g) }, nil)

	base := time.Unix(1000, 0)
	d.Release("kbd", base)
	d.Release("kbd", base.Add(50*time.Millisecond))
	d.Release("kbd", base.Add(time.Second))
	d.Release("kbd", base.Add(time.Second+50*time.Millisecond))

	require.Len(t, fired, 2)
	assert.NotEmpty(t, fired[0].ID)
	assert.NotEmpty(t, fired[1].ID)
	assert.NotEqual(t, fired[0].ID, fired[1].ID)
}

func TestSetInterval(t *testing.T) {
	var count int
	d := New(300*time.Millisecond, func(Gesture) { count++ }, nil)

	d.SetInterval(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, d.Interval())

	base := time.Unix(1000, 0)
	d.Release("kbd", base)
	d.Release("kbd", base.Add(150*time.Millisecond))
	assert.Equal(t, 0, count)

	d.Release("kbd", base.Add(200*time.Millisecond))
	assert.Equal(t, 1, count)

	// Non-positive intervals are ignored
	d.SetInterval(0)
	assert.Equal(t, 100*time.Millisecond, d.Interval())
}

func TestReset(t *testing.T) {
	var count int
	d := New(300*time.Millisecond, func(Gesture) { count++ }, nil)

	base := time.Unix(1000, 0)
	d.Release("kbd", base)
	d.Reset()
	d.Release("kbd", base.Add(50*time.Millisecond))
	assert.Equal(t, 0, count)
}

func TestNewDefaults(t *testing.T) {
	d := New(0, nil, nil)
	assert.Equal(t, DefaultInterval, d.Interval())

	// Nil handler must not panic on detection
	base := time.Unix(1000, 0)
	d.Release("kbd", base)
	assert.True(t, d.Release("kbd", base.Add(50*time.Millisecond)))
}
