package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// killConfirmTimeout bounds the wait for a process to disappear after a
// forceful kill. On Windows taskkill plus process-table verification can take
// several seconds.
const killConfirmTimeout = 10 * time.Second

// portPattern matches the worker's listening announcement, e.g. uvicorn's
// "Uvicorn running on http://127.0.0.1:8000 (Press CTRL+C to quit)".
var portPattern = regexp.MustCompile(`(?i)(?:running on|listening (?:on|at))\s+https?://[\w.\-]+:(\d+)`)

// Process is a handle to one spawned worker. Exit is observed exactly once
// and broadcast by closing Done; the exit code is readable afterwards.
type Process struct {
	cmd    *exec.Cmd
	logger *slog.Logger
	killer killer

	done     chan struct{}
	exitCode int

	portOnce sync.Once
	portCh   chan int
}

// PID returns the worker's process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed when the worker exits, however it exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode is valid once Done is closed. -1 means the process was killed by
// a signal or the code could not be determined.
func (p *Process) ExitCode() int {
	select {
	case <-p.done:
		return p.exitCode
	default:
		return -1
	}
}

// Port delivers the dynamically bound port once, if the worker announces it
// on its output. Callers that see nothing within their discovery window fall
// back to probing the requested port.
func (p *Process) Port() <-chan int {
	return p.portCh
}

// wait blocks on the child and publishes its exit.
func (p *Process) wait() {
	err := p.cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	p.exitCode = code
	close(p.done)

	p.logger.Info("worker exited", "code", code)
}

// scan reads one of the worker's output streams line by line, watching for
// the port announcement and routing lines to log severities. The worker's
// Python logging (uvicorn included) writes to stderr, so INFO noise there is
// not an error; only lines that look like real failures are escalated.
func (p *Process) scan(r io.Reader, stream string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if m := portPattern.FindStringSubmatch(line); m != nil {
			if port, err := strconv.Atoi(m[1]); err == nil {
				p.announcePort(port)
			}
		}

		switch classifyLine(line) {
		case slog.LevelError:
			p.logger.Error("worker: "+line, "stream", stream)
		case slog.LevelWarn:
			p.logger.Warn("worker: "+line, "stream", stream)
		default:
			p.logger.Debug("worker: "+line, "stream", stream)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Debug("worker output scan ended", "stream", stream, "error", err)
	}
}

func (p *Process) announcePort(port int) {
	p.portOnce.Do(func() {
		p.portCh <- port
		p.logger.Info("worker announced port", "port", port)
	})
}

// classifyLine maps a worker log line to a severity. Python tracebacks and
// ERROR/CRITICAL records are failures; WARNING records are warnings;
// everything else is startup/request noise.
func classifyLine(line string) slog.Level {
	switch {
	case strings.Contains(line, "Traceback"),
		strings.Contains(line, "ERROR"),
		strings.Contains(line, "CRITICAL"):
		return slog.LevelError
	case strings.Contains(line, "WARNING"):
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

// Terminate requests a graceful stop and escalates to a forceful kill if the
// worker has not exited within the graceful window. It returns only after
// the process is confirmed dead (or the context is cancelled), so callers
// may assume the pid and port are released. Signalling a process that
// already exited is not an error.
func (p *Process) Terminate(ctx context.Context, graceful time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	pid := p.PID()
	if err := p.killer.signalStop(pid); err != nil && !isAlreadyExited(err) {
		p.logger.Warn("graceful stop signal failed", "error", err)
	}

	timer := time.NewTimer(graceful)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	p.logger.Warn("worker ignored graceful stop, killing")
	if err := p.killer.kill(ctx, pid); err != nil && !isAlreadyExited(err) {
		return fmt.Errorf("killing worker pid %d: %w", pid, err)
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(killConfirmTimeout):
		return fmt.Errorf("worker pid %d still alive after forceful kill", pid)
	}
}
