// Package supervisor owns the lifecycle of the external embedding worker:
// spawning it with captured stdio, watching its output for the port
// announcement, terminating it with graceful-then-forceful escalation, and
// sweeping the socket table for leaked listeners after teardown.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/novelassist/vectord/pkg/logger"
)

// lowestKillablePID guards cleanup against well-known system pids. Pid 0 is
// the idle/scheduler pseudo-process and pid 4 is the Windows System process.
const lowestKillablePID = 4

// Command describes how to launch the worker process.
type Command struct {
	// Path is the resolved interpreter executable.
	Path string

	// Args are passed verbatim, script path first.
	Args []string

	// Env is the full environment for the child. Nil inherits the parent's.
	Env []string

	// Dir is the working directory. Empty inherits the parent's.
	Dir string
}

// WorkerCommand builds the argv contract for the embedding server script:
// --host, --port, --db-path, plus --auto-port when the worker may self-select
// a free port. VECTOR_DB_PATH is also set in the environment since the script
// honors either.
func WorkerCommand(python, script, host string, port int, dbPath string, autoPort bool) Command {
	args := []string{
		script,
		"--host", host,
		"--port", strconv.Itoa(port),
		"--db-path", dbPath,
	}
	if autoPort {
		args = append(args, "--auto-port")
	}

	return Command{
		Path: python,
		Args: args,
		Env:  append(os.Environ(), "VECTOR_DB_PATH="+dbPath),
	}
}

// Supervisor spawns and supervises worker processes. One Supervisor may
// spawn many processes over its lifetime, but callers (the vector client)
// keep at most one alive at a time.
type Supervisor struct {
	logger *slog.Logger
	killer killer
}

func New(log *slog.Logger) *Supervisor {
	if log == nil {
		log = logger.Nop()
	}
	return &Supervisor{
		logger: log,
		killer: newKiller(),
	}
}

// Spawn launches the worker with stdout/stderr captured and scanned. It
// fails if the executable cannot be started; interpreter resolution is the
// caller's job (see ResolveInterpreter).
func (s *Supervisor) Spawn(ctx context.Context, command Command) (*Process, error) {
	// #nosec G204 -- the path is a pre-resolved interpreter, the args a fixed contract.
	cmd := exec.Command(command.Path, command.Args...)
	cmd.Env = command.Env
	cmd.Dir = command.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("piping worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("piping worker stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker %s: %w", command.Path, err)
	}

	p := &Process{
		cmd:    cmd,
		logger: s.logger.With("pid", cmd.Process.Pid),
		killer: s.killer,
		done:   make(chan struct{}),
		portCh: make(chan int, 1),
	}

	go p.scan(stdout, "stdout")
	go p.scan(stderr, "stderr")
	go p.wait()

	s.logger.Info("worker spawned",
		"pid", cmd.Process.Pid,
		"path", command.Path,
	)

	return p, nil
}

// TerminatePID terminates a worker known only by pid (a worker started by an
// earlier vectord invocation, recovered from run state). Graceful signal
// first, forceful kill after the graceful window. An already-dead pid is a
// no-op.
func (s *Supervisor) TerminatePID(ctx context.Context, pid int, graceful time.Duration) error {
	if pid <= 0 || !Alive(pid) {
		return nil
	}

	if err := s.killer.signalStop(pid); err != nil && !isAlreadyExited(err) {
		s.logger.Warn("graceful stop signal failed", "pid", pid, "error", err)
	}

	if s.awaitDeath(ctx, pid, graceful) {
		return nil
	}

	s.logger.Warn("worker ignored graceful stop, killing", "pid", pid)
	if err := s.killer.kill(ctx, pid); err != nil && !isAlreadyExited(err) {
		return fmt.Errorf("killing worker pid %d: %w", pid, err)
	}

	if !s.awaitDeath(ctx, pid, killConfirmTimeout) {
		return fmt.Errorf("worker pid %d still alive after forceful kill", pid)
	}
	return nil
}

// awaitDeath polls the process table until the pid disappears or the window
// elapses.
func (s *Supervisor) awaitDeath(ctx context.Context, pid int, window time.Duration) bool {
	deadline := time.Now().Add(window)
	for {
		if !Alive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return !Alive(pid)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// CleanupPort inspects the OS socket table for a process still listening on
// port after termination and kills it. This guards against leaked children
// the graceful path missed. System pids and our own pid are never touched.
// Kill failures are logged, not returned: they do not change the
// caller-visible outcome of a stop.
func (s *Supervisor) CleanupPort(ctx context.Context, port int) error {
	conns, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return fmt.Errorf("listing tcp sockets: %w", err)
	}

	self := int32(os.Getpid())
	for _, conn := range conns {
		if conn.Status != "LISTEN" || conn.Laddr.Port != uint32(port) {
			continue
		}
		if !ShouldKillPID(conn.Pid, self) {
			s.logger.Warn("refusing to kill listener on freed port",
				"pid", conn.Pid,
				"port", port,
			)
			continue
		}

		s.logger.Warn("killing leaked listener",
			"pid", conn.Pid,
			"port", port,
		)
		if err := s.killer.kill(ctx, int(conn.Pid)); err != nil && !isAlreadyExited(err) {
			s.logger.Error("failed to kill leaked listener",
				"pid", conn.Pid,
				"port", port,
				"error", err,
			)
		}
	}

	return nil
}

// ShouldKillPID reports whether cleanup may kill the given pid. Pid 0, low
// well-known system pids, and the current process are always off-limits.
func ShouldKillPID(pid, self int32) bool {
	return pid > lowestKillablePID && pid != self
}

// Alive reports whether a process with the given pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}
