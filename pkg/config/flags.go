package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands.
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag registry keys to Flag structs.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen        = "listen"
	FlagModel         = "model"
	FlagStorageDriver = "storage-driver"
	FlagSQLite        = "sqlite"
	FlagPostgres      = "postgres"
	FlagTravelURL     = "travel-url"
	FlagEventsProv    = "events-provider"
	FlagBrokers       = "brokers"
	FlagTopic         = "topic"
	FlagNumWorkers    = "workers"
)

// DefaultFlagSet returns the standard flag definitions shared by the
// serve command.
func DefaultFlagSet() FlagSet {
	return FlagSet{
		FlagListen: {
			Name:        "listen",
			Shorthand:   "l",
			ViperKey:    "server.listen",
			Description: "Address for the HTTP server to listen on",
		},
		FlagModel: {
			Name:        "model",
			Shorthand:   "m",
			ViperKey:    "assistant.model",
			Description: "Completion model identifier",
		},
		FlagStorageDriver: {
			Name:        "storage-driver",
			ViperKey:    "storage.driver",
			Description: "Conversation store backend (memory, sqlite, postgres)",
		},
		FlagSQLite: {
			Name:        "sqlite",
			Shorthand:   "s",
			ViperKey:    "storage.sqlite_path",
			Description: "Path to SQLite database",
		},
		FlagPostgres: {
			Name:        "postgres",
			ViperKey:    "storage.postgres_dsn",
			Description: "PostgreSQL connection string",
		},
		FlagTravelURL: {
			Name:        "travel-url",
			ViperKey:    "travel.base_url",
			Description: "Travel API base URL",
		},
		FlagEventsProv: {
			Name:        "events-provider",
			ViperKey:    "events.provider",
			Description: "Event stream backend (nop, kafka)",
		},
		FlagBrokers: {
			Name:        "brokers",
			ViperKey:    "events.brokers",
			Description: "Comma-separated Kafka broker addresses",
		},
		FlagTopic: {
			Name:        "topic",
			ViperKey:    "events.topic",
			Description: "Kafka topic for processed-message events",
		},
		FlagNumWorkers: {
			Name:        "workers",
			Shorthand:   "w",
			ViperKey:    "worker.num_workers",
			Description: "Number of async exchange workers",
		},
	}
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
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
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
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

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
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

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
