//go:build windows

package shell

import (
	"os/exec"
	"time"
)

// setProcessGroup is a no-op on Windows; NatShell's Windows support is
// best-effort and relies on cmd.Process.Kill for cancellation.
func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd, grace time.Duration, done <-chan struct{}) {
	if cmd.Process == nil {
		return
	}
	cmd.Process.Kill()
}
