package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ctrltap/internal/dbus"
)

var pinCmd = &cobra.Command{
	Use:       "pin {on|off}",
	Short:     "Broadcast the always-on-top window state",
	ValidArgs: []string{"on", "off"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Long: `Broadcast the SetAlwaysOnTop advisory signal on the session bus.

This is fire-and-forget: any listener (a compositor helper, a window
manager script, 'ctrltap listen') may react to it, and nothing
acknowledges it. It carries a single boolean: on or off.`,
	RunE: runPin,
}

func init() {
	rootCmd.AddCommand(pinCmd)
}

func runPin(cmd *cobra.Command, args []string) error {
	pinned := args[0] == "on"
	if err := dbus.PublishAlwaysOnTop(pinned); err != nil {
		return fmt.Errorf("pin failed: %w", err)
	}
	fmt.Printf("always-on-top %s broadcast\n", args[0])
	return nil
}
