//go:build !windows

package supervisor

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func sysProcAttr() *syscall.SysProcAttr {
	// New process group so the whole tree can be signaled as a unit.
	return &syscall.SysProcAttr{Setpgid: true}
}

func killProcessTree(p *os.Process) error {
	err := unix.Kill(-p.Pid, unix.SIGKILL)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}
