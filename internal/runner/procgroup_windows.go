//go:build windows

package runner

import (
	"os/exec"
	"strconv"
)

// killTree makes cancellation kill cmd and every process it started.
func killTree(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		pid := strconv.Itoa(cmd.Process.Pid)
		if err := exec.Command("taskkill", "/T", "/F", "/PID", pid).Run(); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
