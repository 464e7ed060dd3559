package config

import (
	"fmt"
	"strconv"
)

// Config is the persistent vectord configuration stored as config.toml in the
// .novelassist/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Worker     WorkerConfig     `toml:"worker"`
	Health     HealthConfig     `toml:"health"`
	Supervisor SupervisorConfig `toml:"supervisor"`
	Store      StoreConfig      `toml:"store"`
	API        APIConfig        `toml:"api"`
	Client     ClientConfig     `toml:"client"`
}

// WorkerConfig describes how the external embedding server is launched.
type WorkerConfig struct {
	// PythonPath pins the interpreter. Empty means auto-resolve: the bundled
	// runtime when present, otherwise python3/python from PATH.
	PythonPath string `toml:"python_path,omitempty"`

	// BundledRuntime is the directory of a packaged Python runtime shipped
	// alongside the application, checked before falling back to PATH.
	BundledRuntime string `toml:"bundled_runtime,omitempty"`

	// ScriptPath is the embedding server entrypoint (chroma_server.py).
	ScriptPath string `toml:"script_path,omitempty"`

	// Host and Port form the requested listening endpoint. The port is a
	// hint when AutoPort is enabled; the worker may bind elsewhere and
	// announce the real port on stdout.
	Host string `toml:"host,omitempty"`
	Port uint   `toml:"port,omitempty"`

	// DBPath is the directory handed to the worker for persistent vectors.
	DBPath string `toml:"db_path,omitempty"`

	// AutoPort permits the worker to self-select a free port when the
	// requested one is taken.
	AutoPort bool `toml:"auto_port"`
}

// HealthConfig tunes the startup readiness probe.
type HealthConfig struct {
	MaxAttempts uint `toml:"max_attempts,omitempty"`
	IntervalMs  uint `toml:"interval_ms,omitempty"`
}

// SupervisorConfig tunes process teardown.
type SupervisorConfig struct {
	// GracefulTimeoutMs is how long to wait after the graceful signal before
	// escalating to a forceful kill.
	GracefulTimeoutMs uint `toml:"graceful_timeout_ms,omitempty"`
}

// StoreConfig holds vector-store client settings.
type StoreConfig struct {
	DefaultCollection string `toml:"default_collection,omitempty"`
	RequestTimeoutMs  uint   `toml:"request_timeout_ms,omitempty"`
}

// APIConfig holds boundary API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running
// vectord serve instance (e.g. vectord query).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"worker.python_path": {
		get: func(c *Config) string { return c.Worker.PythonPath },
		set: func(c *Config, v string) error { c.Worker.PythonPath = v; return nil },
	},
	"worker.bundled_runtime": {
		get: func(c *Config) string { return c.Worker.BundledRuntime },
		set: func(c *Config, v string) error { c.Worker.BundledRuntime = v; return nil },
	},
	"worker.script_path": {
		get: func(c *Config) string { return c.Worker.ScriptPath },
		set: func(c *Config, v string) error { c.Worker.ScriptPath = v; return nil },
	},
	"worker.host": {
		get: func(c *Config) string { return c.Worker.Host },
		set: func(c *Config, v string) error { c.Worker.Host = v; return nil },
	},
	"worker.port": {
		get: func(c *Config) string { return formatUint(c.Worker.Port) },
		set: func(c *Config, v string) error { return parseUint(v, "worker.port", &c.Worker.Port) },
	},
	"worker.db_path": {
		get: func(c *Config) string { return c.Worker.DBPath },
		set: func(c *Config, v string) error { c.Worker.DBPath = v; return nil },
	},
	"worker.auto_port": {
		get: func(c *Config) string { return strconv.FormatBool(c.Worker.AutoPort) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for worker.auto_port: %w", err)
			}
			c.Worker.AutoPort = b
			return nil
		},
	},
	"health.max_attempts": {
		get: func(c *Config) string { return formatUint(c.Health.MaxAttempts) },
		set: func(c *Config, v string) error { return parseUint(v, "health.max_attempts", &c.Health.MaxAttempts) },
	},
	"health.interval_ms": {
		get: func(c *Config) string { return formatUint(c.Health.IntervalMs) },
		set: func(c *Config, v string) error { return parseUint(v, "health.interval_ms", &c.Health.IntervalMs) },
	},
	"supervisor.graceful_timeout_ms": {
		get: func(c *Config) string { return formatUint(c.Supervisor.GracefulTimeoutMs) },
		set: func(c *Config, v string) error {
			return parseUint(v, "supervisor.graceful_timeout_ms", &c.Supervisor.GracefulTimeoutMs)
		},
	},
	"store.default_collection": {
		get: func(c *Config) string { return c.Store.DefaultCollection },
		set: func(c *Config, v string) error { c.Store.DefaultCollection = v; return nil },
	},
	"store.request_timeout_ms": {
		get: func(c *Config) string { return formatUint(c.Store.RequestTimeoutMs) },
		set: func(c *Config, v string) error { return parseUint(v, "store.request_timeout_ms", &c.Store.RequestTimeoutMs) },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
}

func formatUint(v uint) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(v), 10)
}

func parseUint(v, key string, target *uint) error {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*target = uint(n)
	return nil
}
