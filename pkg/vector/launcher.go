package vector

import (
	"context"
	"time"

	"github.com/novelassist/vectord/pkg/supervisor"
)

// Worker is a handle to one running embedding server process.
// *supervisor.Process satisfies it.
type Worker interface {
	PID() int
	Done() <-chan struct{}
	ExitCode() int
	Port() <-chan int
	Terminate(ctx context.Context, graceful time.Duration) error
}

// Launcher spawns workers and sweeps their ports on teardown. The client
// depends on this interface rather than os/exec directly so the lifecycle
// state machine is testable against fakes.
type Launcher interface {
	Launch(ctx context.Context) (Worker, error)
	CleanupPort(ctx context.Context, port int) error
}

type supervisorLauncher struct {
	sup     *supervisor.Supervisor
	command supervisor.Command
}

// NewSupervisorLauncher adapts a Supervisor plus a fixed worker command into
// a Launcher.
func NewSupervisorLauncher(sup *supervisor.Supervisor, command supervisor.Command) Launcher {
	return &supervisorLauncher{sup: sup, command: command}
}

func (l *supervisorLauncher) Launch(ctx context.Context) (Worker, error) {
	return l.sup.Spawn(ctx, l.command)
}

func (l *supervisorLauncher) CleanupPort(ctx context.Context, port int) error {
	return l.sup.CleanupPort(ctx, port)
}
