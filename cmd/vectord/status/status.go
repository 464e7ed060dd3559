// Package statuscmder provides the status command for inspecting a worker
// started by an earlier vectord serve.
package statuscmder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/novelassist/vectord/pkg/health"
	"github.com/novelassist/vectord/pkg/logger"
	"github.com/novelassist/vectord/pkg/runstate"
	"github.com/novelassist/vectord/pkg/supervisor"
)

const statusLongDesc string = `Show the state of the embedding worker.

Reads the persisted worker state from the .novelassist/ directory and checks
whether the recorded process is still alive and answering health probes.

Examples:
  vectord status`

const statusShortDesc string = "Show the embedding worker's state"

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, err := cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %w", err)
			}
			return runStatus(cmd.Context(), configDir)
		},
	}

	return cmd
}

func runStatus(ctx context.Context, configDir string) error {
	manager, err := runstate.NewManager(configDir)
	if err != nil {
		return err
	}

	lock, err := manager.Lock()
	if err != nil {
		return err
	}
	state, err := manager.LoadState()
	if releaseErr := lock.Release(); releaseErr != nil {
		return releaseErr
	}
	if err != nil {
		return err
	}

	if state == nil {
		fmt.Println("No worker is running. Start one with: vectord serve")
		return nil
	}

	alive := supervisor.Alive(state.WorkerPID)
	healthy := false
	if alive {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		probe := health.NewProbe(logger.Nop())
		healthy = probe.WaitUntilReady(probeCtx, health.Endpoint{
			Host: state.Host,
			Port: state.Port,
		}, 1, 0) == nil
	}

	fmt.Print(renderStatus(state, alive, healthy))
	return nil
}

// renderStatus formats the status report. Split out for testing.
func renderStatus(state *runstate.State, alive, healthy bool) string {
	var b strings.Builder

	workerLine := fmt.Sprintf("%d", state.WorkerPID)
	switch {
	case !alive:
		workerLine += " (not running)"
	case healthy:
		workerLine += " (healthy)"
	default:
		workerLine += " (alive, not answering health checks)"
	}

	fmt.Fprintf(&b, "\n  Worker pid:  %s\n", workerLine)
	fmt.Fprintf(&b, "  Serve pid:   %d\n", state.ServePID)
	fmt.Fprintf(&b, "  Endpoint:    %s\n", state.Endpoint())
	fmt.Fprintf(&b, "  API:         %s\n", state.APIURL)
	fmt.Fprintf(&b, "  Database:    %s\n", state.DBPath)
	fmt.Fprintf(&b, "  Log file:    %s\n", state.LogPath)
	if !state.StartedAt.IsZero() {
		fmt.Fprintf(&b, "  Started:     %s\n", state.StartedAt.Format(time.RFC3339))
	}
	b.WriteString("\n")

	return b.String()
}
