package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ctrltap/internal/dbus"
)

var statusOpts struct {
	jsonOutput bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Query ctrltapd's Status method and print the result.

Shows the daemon version, uptime, number of double taps detected since
start, the monitored keyboards and whether the virtual keyboard is
available. Use --json for machine-readable output.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusOpts.jsonOutput, "json", false,
		"Output status as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := dbus.GetStatus()
	if err != nil {
		return err
	}

	if statusOpts.jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(status)
	}

	fmt.Printf("ctrltapd %s\n", status.Version)
	fmt.Printf("  started:  %s (%s)\n", status.StartedAt.Format("2006-01-02 15:04:05"), humanize.Time(status.StartedAt))
	fmt.Printf("  triggers: %d\n", status.TriggerCount)
	fmt.Printf("  injector: %s\n", readiness(status.InjectorReady))
	if len(status.Devices) == 0 {
		fmt.Println("  devices:  none")
	} else {
		fmt.Println("  devices:")
		for _, name := range status.Devices {
			fmt.Printf("    %s\n", name)
		}
	}
	return nil
}

func readiness(ready bool) string {
	if ready {
		return "ready"
	}
	return "unavailable"
}
