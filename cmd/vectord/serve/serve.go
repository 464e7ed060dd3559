// Package servecmder provides the serve command: it launches the embedding
// worker, waits for readiness, runs the boundary API server, and persists the
// worker's identity so status/stop/logs can find it later.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/novelassist/vectord/api"
	"github.com/novelassist/vectord/pkg/config"
	"github.com/novelassist/vectord/pkg/health"
	"github.com/novelassist/vectord/pkg/logger"
	"github.com/novelassist/vectord/pkg/runstate"
	"github.com/novelassist/vectord/pkg/supervisor"
	"github.com/novelassist/vectord/pkg/vector"
)

const serveLongDesc string = `Run the embedding worker and the vectord API server in the foreground.

The worker is a Python embedding server launched as a child process. serve
spawns it, waits until it reports healthy, and then exposes the vector store
on the API address. Press Ctrl+C to stop both.

Examples:
  vectord serve
  vectord serve --script ./python/chroma_server.py --db-path ./vector_db
  vectord serve --port 8010 --api-listen :8600`

const serveShortDesc string = "Run the embedding worker and API server"

type serveCommander struct {
	debug     bool
	configDir string

	host      string
	port      uint
	dbPath    string
	script    string
	python    string
	apiListen string
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.ServeFlags, []string{
				config.FlagHost,
				config.FlagPort,
				config.FlagDBPath,
				config.FlagScript,
				config.FlagPython,
				config.FlagAPIListen,
			})

			return cmder.run(cmd.Context(), v)
		},
	}

	config.AddStringFlag(cmd, config.ServeFlags, config.FlagHost, &cmder.host)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagPort, &cmder.port)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagDBPath, &cmder.dbPath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagScript, &cmder.script)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagPython, &cmder.python)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagAPIListen, &cmder.apiListen)

	return cmd
}

func (c *serveCommander) run(ctx context.Context, v *viper.Viper) error {
	manager, err := runstate.NewManager(c.configDir)
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile(manager.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	// Pretty output for the terminal, JSON into the log file for vectord logs.
	log := logger.Multi(
		logger.New(logger.WithDebug(c.debug), logger.WithPretty(true)),
		logger.New(logger.WithDebug(true), logger.WithJSON(true), logger.WithWriter(logFile)),
	)

	script := v.GetString("worker.script_path")
	if script == "" {
		return errors.New("worker script path is required: set worker.script_path or pass --script")
	}
	script, err = filepath.Abs(script)
	if err != nil {
		return fmt.Errorf("resolving script path: %w", err)
	}

	dbPath := v.GetString("worker.db_path")
	if dbPath == "" {
		dbPath = filepath.Join(manager.Dir, "vector_db")
	}
	dbPath, err = filepath.Abs(dbPath)
	if err != nil {
		return fmt.Errorf("resolving db path: %w", err)
	}
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return fmt.Errorf("creating db path: %w", err)
	}

	python := v.GetString("worker.python_path")
	if python == "" {
		python, err = supervisor.ResolveInterpreter(v.GetString("worker.bundled_runtime"))
		if err != nil {
			return err
		}
	}

	host := v.GetString("worker.host")
	port := v.GetInt("worker.port")
	autoPort := v.GetBool("worker.auto_port")

	sup := supervisor.New(log)
	command := supervisor.WorkerCommand(python, script, host, port, dbPath, autoPort)
	launcher := vector.NewSupervisorLauncher(sup, command)

	client := vector.NewClient(launcher, health.NewProbe(log), vector.Config{
		Host:              host,
		Port:              port,
		DefaultCollection: v.GetString("store.default_collection"),
		HealthMaxAttempts: v.GetInt("health.max_attempts"),
		HealthInterval:    time.Duration(v.GetInt("health.interval_ms")) * time.Millisecond,
		GracefulTimeout:   time.Duration(v.GetInt("supervisor.graceful_timeout_ms")) * time.Millisecond,
		RequestTimeout:    time.Duration(v.GetInt("store.request_timeout_ms")) * time.Millisecond,
	}, log)

	log.Info("launching embedding worker",
		"python", python,
		"script", script,
		"db_path", dbPath,
	)
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}

	apiListen := v.GetString("api.listen")
	server := api.NewServer(api.Config{ListenAddr: apiListen}, client, log)

	endpoint := client.Endpoint()
	if err := c.saveState(manager, client, endpoint, dbPath, apiListen); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = client.Stop(stopCtx)
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("api server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errChan:
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
	case <-server.ShutdownRequested():
		log.Info("shutdown requested over the api")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = server.Shutdown()
	if err := client.Stop(stopCtx); err != nil {
		log.Warn("stopping worker", "error", err)
	}
	c.clearState(manager)

	return runErr
}

func (c *serveCommander) saveState(manager *runstate.Manager, client *vector.Client, endpoint health.Endpoint, dbPath, apiListen string) error {
	lock, err := manager.Lock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	return manager.SaveState(&runstate.State{
		ServePID:  os.Getpid(),
		WorkerPID: client.PID(),
		Host:      endpoint.Host,
		Port:      endpoint.Port,
		DBPath:    dbPath,
		APIURL:    listenURL(apiListen),
		LogPath:   manager.LogPath,
		StartedAt: time.Now(),
	})
}

func (c *serveCommander) clearState(manager *runstate.Manager) {
	lock, err := manager.Lock()
	if err != nil {
		return
	}
	defer func() { _ = lock.Release() }()
	_ = manager.ClearState()
}

// listenURL turns a listen address like ":8600" into a dialable base URL.
func listenURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "http://localhost" + listen
	}
	return "http://" + listen
}
