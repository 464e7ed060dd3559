package supervisor

import (
	"context"
	"errors"
	"os"
	"strings"
	"syscall"
)

// killer abstracts platform-specific process termination. Unix signals are
// reliable; Windows needs taskkill plus process-table verification. The
// implementation is selected once at construction, not branched inline.
type killer interface {
	// signalStop requests a graceful shutdown.
	signalStop(pid int) error

	// kill forcefully terminates the process (and, on Windows, its tree),
	// verifying death where the platform requires it.
	kill(ctx context.Context, pid int) error
}

// isAlreadyExited reports whether a kill failure just means the target was
// already gone. Those are expected during teardown races and are never
// surfaced as errors.
func isAlreadyExited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such process") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "not running")
}
