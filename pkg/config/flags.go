package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag. Commands reference
// flags by registry key rather than hard-coding names, shorthands, defaults,
// and descriptions inline. This prevents flag drift when the same logical
// flag appears on multiple commands (e.g. --api-target on both
// "vectord query" and "vectord stop").
type Flag struct {
	// Name is the long flag name (e.g. "port").
	Name string

	// Shorthand is the one-letter short flag. Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "worker.port").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet maps registry keys to Flag definitions.
type FlagSet map[string]Flag

// Flag registry keys. Use these constants when calling AddStringFlag,
// AddUintFlag, and BindRegisteredFlags.
const (
	FlagHost       = "host"
	FlagPort       = "port"
	FlagDBPath     = "db-path"
	FlagScript     = "script"
	FlagPython     = "python"
	FlagAPIListen  = "api-listen"
	FlagAPITarget  = "api-target"
	FlagCollection = "collection"
)

// ServeFlags is the registry used by the serve command.
var ServeFlags = FlagSet{
	FlagHost: {
		Name:        "host",
		ViperKey:    "worker.host",
		Description: "Host interface the embedding worker binds to",
	},
	FlagPort: {
		Name:        "port",
		Shorthand:   "p",
		ViperKey:    "worker.port",
		Description: "Requested worker port (hint when auto_port is enabled)",
	},
	FlagDBPath: {
		Name:        "db-path",
		ViperKey:    "worker.db_path",
		Description: "Directory for the worker's persistent vector database",
	},
	FlagScript: {
		Name:        "script",
		ViperKey:    "worker.script_path",
		Description: "Path to the embedding server script",
	},
	FlagPython: {
		Name:        "python",
		ViperKey:    "worker.python_path",
		Description: "Python interpreter to launch the worker with",
	},
	FlagAPIListen: {
		Name:        "api-listen",
		Shorthand:   "a",
		ViperKey:    "api.listen",
		Description: "Address for the vectord API server to listen on",
	},
}

// ClientFlags is the registry used by commands that talk to a running serve.
var ClientFlags = FlagSet{
	FlagAPITarget: {
		Name:        "api-target",
		ViperKey:    "client.api_target",
		Description: "Base URL of a running vectord API server",
	},
	FlagCollection: {
		Name:        "collection",
		Shorthand:   "c",
		ViperKey:    "store.default_collection",
		Description: "Collection to operate on",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// Name, shorthand, default, and description all come from the registry entry.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, key string, target *uint) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using
// definitions from the given FlagSet. Call in PreRunE after InitViper to
// connect flags to the precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
