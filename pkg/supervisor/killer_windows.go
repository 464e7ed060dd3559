//go:build windows

package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

func newKiller() killer {
	return &windowsKiller{}
}

// windowsKiller terminates via taskkill. Graceful console signals are
// unreliable on Windows, so the forceful path verifies death against the
// process table and escalates to a tree kill when the pid lingers. This can
// take multiple seconds; callers await full completion before assuming the
// port and pid are released.
type windowsKiller struct{}

func (k *windowsKiller) signalStop(pid int) error {
	out, err := exec.Command("taskkill", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		return wrapTaskkill(pid, out, err)
	}
	return nil
}

func (k *windowsKiller) kill(ctx context.Context, pid int) error {
	// /T kills the whole tree: uvicorn workers may have forked children.
	out, err := exec.CommandContext(ctx, "taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil && !isAlreadyExited(wrapTaskkill(pid, out, err)) {
		return wrapTaskkill(pid, out, err)
	}

	// taskkill returning success does not guarantee the pid is gone yet.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		exists, err := process.PidExistsWithContext(ctx, int32(pid))
		if err != nil || !exists {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}

	// Still in the process table: one final tree kill, then report.
	out, err = exec.CommandContext(ctx, "taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil && !isAlreadyExited(wrapTaskkill(pid, out, err)) {
		return wrapTaskkill(pid, out, err)
	}
	return nil
}

// wrapTaskkill folds taskkill's output into the error so isAlreadyExited can
// recognize "process not found" responses (exit code 128).
func wrapTaskkill(pid int, out []byte, err error) error {
	return fmt.Errorf("taskkill pid %d: %w: %s", pid, err, strings.TrimSpace(string(out)))
}
