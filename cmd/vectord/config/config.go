// Package configcmder provides the config command for managing persistent
// vectord configuration stored in the .novelassist/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent vectord configuration.

Configuration is stored as config.toml in the .novelassist/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  worker.python_path, worker.bundled_runtime, worker.script_path,
  worker.host, worker.port, worker.db_path, worker.auto_port,
  health.max_attempts, health.interval_ms,
  supervisor.graceful_timeout_ms,
  store.default_collection, store.request_timeout_ms,
  api.listen, client.api_target

Use subcommands to get, set, or list configuration values:
  vectord config set <key> <value>    Set a configuration value
  vectord config get <key>            Get a configuration value
  vectord config list                 List all configuration values

Examples:
  vectord config set worker.script_path ./python/chroma_server.py
  vectord config set worker.auto_port true
  vectord config get worker.port
  vectord config list`

const configShortDesc string = "Manage persistent vectord configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
