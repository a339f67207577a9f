package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ctrltap/internal/dbus"
)

var listenOpts struct {
	exec string
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Follow double-tap detections from the daemon",
	Long: `Subscribe to ctrltapd's broadcasts and print one line per event.

The subscription survives daemon restarts: when the bus or the daemon
goes away, ctrltap keeps retrying with exponential backoff (1s doubling
to a 30s cap) until the daemon is back.

With --exec, the given command is run through the shell on every
double-tap detection instead of printing a line.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVar(&listenOpts.exec, "exec", "",
		"Shell command to run on each detection")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	sub := dbus.NewSubscriber(logger)
	sub.SetTriggeredHandler(func() {
		if listenOpts.exec != "" {
			go runExec(listenOpts.exec)
			return
		}
		fmt.Printf("%s\ttriggered\n", time.Now().Format(time.RFC3339))
	})
	sub.SetPinHandler(func(pinned bool) {
		fmt.Printf("%s\talways-on-top\t%t\n", time.Now().Format(time.RFC3339), pinned)
	})

	sub.Run(ctx)
	return nil
}

// runExec runs the user's command through the shell, logging failures
// instead of stopping the subscription.
func runExec(command string) {
	if err := shellExec(command); err != nil {
		logger.Warn("exec command failed", "command", command, "error", err)
	}
}
