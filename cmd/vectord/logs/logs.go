// Package logscmder provides the logs command for following the worker log
// file written by vectord serve.
package logscmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/novelassist/vectord/pkg/runstate"
)

const logsLongDesc string = `Follow the embedding worker's log file.

vectord serve mirrors its structured logs, including the worker's own output,
into worker.log in the .novelassist/ directory. This command tails that file
until interrupted.

Examples:
  vectord logs`

const logsShortDesc string = "Follow the worker log"

func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: logsShortDesc,
		Long:  logsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, err := cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %w", err)
			}
			return runLogs(cmd.Context(), configDir, cmd.OutOrStdout())
		},
	}

	return cmd
}

func runLogs(ctx context.Context, configDir string, out io.Writer) error {
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

	logPath := manager.LogPath
	if state != nil && state.LogPath != "" {
		logPath = state.LogPath
	}

	if _, err := os.Stat(logPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("no worker logs found")
		}
		return fmt.Errorf("checking log file: %w", err)
	}

	return followLog(ctx, logPath, out)
}

// followLog tails the file from its current end, waking on filesystem events
// instead of polling. The parent directory is watched because the file itself
// may be replaced by a rotation.
func followLog(ctx context.Context, path string, out io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer file.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating log watcher: %w", err)
	}
	defer watcher.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}

	if _, err := file.Seek(stat.Size(), io.SeekStart); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching log dir: %w", err)
	}

	buf := make([]byte, 4096)
	readAvailable := func() error {
		for {
			n, err := file.Read(buf)
			if n > 0 {
				if _, writeErr := out.Write(buf[:n]); writeErr != nil {
					return writeErr
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}
	}

	if err := readAvailable(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := readAvailable(); err != nil {
				return err
			}
		case err := <-watcher.Errors:
			return fmt.Errorf("log watcher error: %w", err)
		}
	}
}
