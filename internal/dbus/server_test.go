package dbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeTextDispatch(t *testing.T) {
	s := NewServer("test", testLogger())

	// No handler wired: injector unavailable.
	assert.NotNil(t, s.TypeText())

	var called int
	s.SetTypeTextHandler(func() error {
		called++
		return nil
	})
	assert.Nil(t, s.TypeText())
	assert.Equal(t, 1, called)

	// Handler failure surfaces as a D-Bus error, not a crash.
	s.SetTypeTextHandler(func() error {
		return errors.New("virtual keyboard unavailable")
	})
	dbusErr := s.TypeText()
	require.NotNil(t, dbusErr)
	assert.Contains(t, dbusErr.Error(), "virtual keyboard unavailable")
}

func TestStatusValues(t *testing.T) {
	s := NewServer("1.2.3", testLogger())
	s.SetDeviceLister(func() []string {
		return []string{"AT Translated Set 2 keyboard", "Logitech K380"}
	})
	s.SetInjectorReady(func() bool { return true })

	version, _, triggers, devices, ready, dbusErr := s.Status()
	require.Nil(t, dbusErr)
	assert.Equal(t, "1.2.3", version)
	assert.Equal(t, uint64(0), triggers)
	assert.Equal(t, []string{"AT Translated Set 2 keyboard", "Logitech K380"}, devices)
	assert.True(t, ready)
}

func TestStatusDefaults(t *testing.T) {
	s := NewServer("dev", testLogger())

	version, _, _, devices, ready, dbusErr := s.Status()
	require.Nil(t, dbusErr)
	assert.Equal(t, "dev", version)
	assert.Empty(t, devices)
	assert.False(t, ready)
}

func TestEmitTriggeredRequiresConnection(t *testing.T) {
	s := NewServer("test", testLogger())

	assert.Error(t, s.EmitTriggered())
	assert.Equal(t, uint64(0), s.TriggerCount())
}

func TestStopWithoutStart(t *testing.T) {
	s := NewServer("test", testLogger())
	assert.NoError(t, s.Stop())
}

func TestIntrospectionData(t *testing.T) {
	methods := doubleTapMethods()
	require.Len(t, methods, 2)
	assert.Equal(t, "TypeText", methods[0].Name)
	assert.Empty(t, methods[0].Args, "TypeText carries no payload")
	assert.Equal(t, "Status", methods[1].Name)

	signals := doubleTapSignals()
	require.Len(t, signals, 2)
	assert.Equal(t, "Triggered", signals[0].Name)
	assert.Empty(t, signals[0].Args, "Triggered carries no payload")
	assert.Equal(t, "SetAlwaysOnTop", signals[1].Name)
	require.Len(t, signals[1].Args, 1)
	assert.Equal(t, "b", signals[1].Args[0].Type)
}
