package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/novelassist/vectord/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It registers defaults from NewDefaultConfig(), reads config.toml (if found
// via dotdir resolution), and binds environment variables with the
// NOVELASSIST_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (NOVELASSIST_WORKER_PORT, NOVELASSIST_API_LISTEN, ...)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("NOVELASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation, keeping defaults.go the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Worker
	v.SetDefault("worker.python_path", d.Worker.PythonPath)
	v.SetDefault("worker.bundled_runtime", d.Worker.BundledRuntime)
	v.SetDefault("worker.script_path", d.Worker.ScriptPath)
	v.SetDefault("worker.host", d.Worker.Host)
	v.SetDefault("worker.port", d.Worker.Port)
	v.SetDefault("worker.db_path", d.Worker.DBPath)
	v.SetDefault("worker.auto_port", d.Worker.AutoPort)

	// Health probe
	v.SetDefault("health.max_attempts", d.Health.MaxAttempts)
	v.SetDefault("health.interval_ms", d.Health.IntervalMs)

	// Supervisor
	v.SetDefault("supervisor.graceful_timeout_ms", d.Supervisor.GracefulTimeoutMs)

	// Store
	v.SetDefault("store.default_collection", d.Store.DefaultCollection)
	v.SetDefault("store.request_timeout_ms", d.Store.RequestTimeoutMs)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.api_target", d.Client.APITarget)
}
