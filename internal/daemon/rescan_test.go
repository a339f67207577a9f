package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceWatcherReportsNewEventNodes(t *testing.T) {
	dir := t.TempDir()

	w, err := NewDeviceWatcher(dir, testLogger())
	require.NoError(t, err)
	w.settle = func(time.Duration) {}

	attached := make(chan string, 4)
	w.SetAttachCallback(func(path string) { attached <- path })

	require.NoError(t, w.Start())
	defer w.Stop()

	// Non-event nodes never reach the callback.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mouse0"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "by-id"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "event5"), nil, 0o644))

	select {
	case path := <-attached:
		assert.Equal(t, filepath.Join(dir, "event5"), path)
	case <-time.After(3 * time.Second):
		t.Fatal("new event node was not reported")
	}

	select {
	case path := <-attached:
		t.Fatalf("unexpected attach for %s", path)
	case <-time.After(100 * time.Millisecond):
	}
}

// Stop must not return while an attach callback is in flight: the
// daemon relies on that to stop spawning monitors before it waits for
// the running ones.
func TestDeviceWatcherStopWaitsForCallback(t *testing.T) {
	dir := t.TempDir()

	w, err := NewDeviceWatcher(dir, testLogger())
	require.NoError(t, err)
	w.settle = func(time.Duration) {}

	entered := make(chan struct{})
	release := make(chan struct{})
	w.SetAttachCallback(func(string) {
		close(entered)
		<-release
	})

	require.NoError(t, w.Start())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "event7"), nil, 0o644))

	select {
	case <-entered:
	case <-time.After(3 * time.Second):
		t.Fatal("attach callback was not invoked")
	}

	stopped := make(chan struct{})
	go func() {
		_ = w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the attach callback was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the callback finished")
	}
}

func TestDeviceWatcherStop(t *testing.T) {
	dir := t.TempDir()

	w, err := NewDeviceWatcher(dir, testLogger())
	require.NoError(t, err)

	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
}

func TestIsEventNode(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/dev/input/event0", true},
		{"/dev/input/event23", true},
		{"/dev/input/mouse0", false},
		{"/dev/input/mice", false},
		{"/dev/input/by-id", false},
		{"/dev/input/event", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isEventNode(tt.path), tt.path)
	}
}
