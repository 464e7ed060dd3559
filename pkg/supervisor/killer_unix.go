//go:build !windows

package supervisor

import (
	"context"
	"os"
	"syscall"
)

func newKiller() killer {
	return &unixKiller{}
}

// unixKiller terminates with SIGTERM/SIGKILL. Signal delivery is synchronous
// and reliable here, so no process-table verification is needed beyond the
// caller's wait on the process handle.
type unixKiller struct{}

func (k *unixKiller) signalStop(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

func (k *unixKiller) kill(_ context.Context, pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}
