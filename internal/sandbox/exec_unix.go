//go:build linux || darwin

package sandbox

import (
	"os/exec"
	"syscall"
)

// setpgidAttr puts the docker CLI child in its own process group so a
// timeout kill reaches any descendants it spawned, not just the direct
// child.
func setpgidAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process == nil {
		return
	}
	syscall.Kill(-cmd.Process.Pid, sig)
}
