package main

import (
	"os"
	"os/exec"
)

// shellExec runs a command line through the user's shell with the
// client's stdout and stderr attached.
func shellExec(command string) error {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell, "-c", command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
