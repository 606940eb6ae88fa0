//go:build windows

package executor

import "os/exec"

const defaultShell = "cmd"

func shellArgs(command string) []string {
	return []string{"/C", command}
}

func configureProcess(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
}
