package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ctrltap/internal/dbus"
)

var typeCmd = &cobra.Command{
	Use:   "type",
	Short: "Ask the daemon to type the paste-and-submit sequence",
	Long: `Invoke ctrltapd's TypeText method.

The daemon presses Ctrl+Shift+V followed by Enter on its virtual
keyboard, pasting the clipboard into the focused window and submitting
it. The call is synchronous: it returns once every key event has been
emitted, or fails if the virtual keyboard is unavailable.`,
	RunE: runTypeText,
}

func init() {
	rootCmd.AddCommand(typeCmd)
}

func runTypeText(cmd *cobra.Command, args []string) error {
	if err := dbus.CallTypeText(); err != nil {
		return fmt.Errorf("type failed: %w", err)
	}
	return nil
}
