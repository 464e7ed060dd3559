// Package stopcmder provides the stop command: out-of-band termination of a
// worker started by an earlier vectord serve, using the persisted run state.
package stopcmder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/novelassist/vectord/pkg/config"
	"github.com/novelassist/vectord/pkg/logger"
	"github.com/novelassist/vectord/pkg/runstate"
	"github.com/novelassist/vectord/pkg/supervisor"
)

const stopLongDesc string = `Stop the embedding worker.

Asks the running serve process to shut down over its API when reachable,
otherwise terminates the worker process directly: graceful signal first,
forceful kill after the graceful window, then a sweep of the worker port for
leaked listeners.

Examples:
  vectord stop`

const stopShortDesc string = "Stop the embedding worker"

type stopCommander struct {
	debug     bool
	configDir string
}

func NewStopCmd() *cobra.Command {
	cmder := &stopCommander{}

	cmd := &cobra.Command{
		Use:   "stop",
		Short: stopShortDesc,
		Long:  stopLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	return cmd
}

func (c *stopCommander) run(ctx context.Context) error {
	manager, err := runstate.NewManager(c.configDir)
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
		fmt.Println("No worker is running.")
		return nil
	}

	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	sup := supervisor.New(log)

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	graceful := time.Duration(v.GetInt("supervisor.graceful_timeout_ms")) * time.Millisecond

	// Prefer asking the serve process to clean up after itself; it owns the
	// worker and clears its own state on the way out.
	if requestShutdown(ctx, state.APIURL) {
		log.Info("asked the running serve to shut down", "api", state.APIURL)
		if awaitExit(ctx, state.WorkerPID, graceful+10*time.Second) {
			fmt.Println("Worker stopped.")
			return nil
		}
		log.Warn("serve did not stop the worker in time, terminating directly")
	}

	if err := sup.TerminatePID(ctx, state.WorkerPID, graceful); err != nil {
		return err
	}
	if err := sup.CleanupPort(ctx, state.Port); err != nil {
		log.Warn("sweeping worker port", "port", state.Port, "error", err)
	}

	lock, err = manager.Lock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	if err := manager.ClearState(); err != nil {
		return err
	}

	fmt.Println("Worker stopped.")
	return nil
}

// requestShutdown POSTs /shutdown to a running serve. Any failure just means
// we fall back to direct termination.
func requestShutdown(ctx context.Context, apiURL string) bool {
	if apiURL == "" {
		return false
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := strings.TrimRight(apiURL, "/") + "/shutdown"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// awaitExit polls the process table until the pid disappears or the window
// elapses.
func awaitExit(ctx context.Context, pid int, window time.Duration) bool {
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if !supervisor.Alive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return !supervisor.Alive(pid)
		case <-time.After(200 * time.Millisecond):
		}
	}
	return !supervisor.Alive(pid)
}
