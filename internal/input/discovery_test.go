package input

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
)

func TestIsKeyboard(t *testing.T) {
	tests := []struct {
		name     string
		codes    []evdev.EvCode
		expected bool
	}{
		{
			name:     "full keyboard",
			codes:    []evdev.EvCode{evdev.KEY_ESC, evdev.KEY_A, evdev.KEY_Z, evdev.KEY_ENTER},
			expected: true,
		},
		{
			name:     "mouse buttons only",
			codes:    []evdev.EvCode{evdev.BTN_LEFT, evdev.BTN_RIGHT, evdev.BTN_MIDDLE},
			expected: false,
		},
		{
			name:     "power button",
			codes:    []evdev.EvCode{evdev.KEY_POWER},
			expected: false,
		},
		{
			name:     "no key capabilities",
			codes:    nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isKeyboard(tt.codes))
		})
	}
}

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		name       string
		device     string
		substrings []string
		expected   bool
	}{
		{"no filters", "AT Translated Set 2 keyboard", nil, false},
		{"substring match", "ctrltap virtual keyboard", []string{"ctrltap"}, true},
		{"no match", "Logitech K380", []string{"Virtual", "ctrltap"}, false},
		{"empty filter ignored", "Logitech K380", []string{""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchesAny(tt.device, tt.substrings))
		})
	}
}
