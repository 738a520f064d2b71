package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// StartDetached spawns the background daemon process.
// The daemon is detached from the parent process (runs independently).
func StartDetached() error {
	// Get our own executable path
	executable, err := os.Executable()
	if err != nil {
		return err
	}

	// Self-exec with the hidden "daemon" command
	cmd := exec.Command(executable, "daemon")

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	return cmd.Start()
}
