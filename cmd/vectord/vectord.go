// Package vectordcmder
package vectordcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/novelassist/vectord/cmd/vectord/config"
	logscmder "github.com/novelassist/vectord/cmd/vectord/logs"
	querycmder "github.com/novelassist/vectord/cmd/vectord/query"
	servecmder "github.com/novelassist/vectord/cmd/vectord/serve"
	statuscmder "github.com/novelassist/vectord/cmd/vectord/status"
	stopcmder "github.com/novelassist/vectord/cmd/vectord/stop"
	versioncmder "github.com/novelassist/vectord/cmd/version"
)

const vectordLongDesc string = `vectord manages the embedding worker behind NovelAssist's semantic search.

It launches the Python embedding server, waits until it is healthy, exposes
the vector store over a local API, and tears the worker down cleanly.

Common commands:
  vectord serve     Run the worker and the API server in the foreground
  vectord status    Show the running worker's state and health
  vectord stop      Stop a worker started by an earlier serve
  vectord logs      Follow the worker log
  vectord query     Run a similarity search against a running serve`

const vectordShortDesc string = "vectord - embedding worker lifecycle manager"

func NewVectordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vectord",
		Short: vectordShortDesc,
		Long:  vectordLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .novelassist directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(stopcmder.NewStopCmd())
	cmd.AddCommand(logscmder.NewLogsCmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
