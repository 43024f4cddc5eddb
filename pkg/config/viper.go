package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found in configDir or the working directory), and binds environment
// variables with the FLIGHTDESK_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (FLIGHTDESK_SERVER_LISTEN, FLIGHTDESK_COMPLETION_API_KEY, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery.
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	} else {
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: FLIGHTDESK_SERVER_LISTEN, FLIGHTDESK_STORAGE_DRIVER, etc.
	v.SetEnvPrefix("FLIGHTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from the viper precedence chain.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Server: ServerConfig{
			Listen: v.GetString("server.listen"),
		},
		Assistant: AssistantConfig{
			Model:             v.GetString("assistant.model"),
			MaxRounds:         v.GetInt("assistant.max_rounds"),
			HistoryTTLMinutes: v.GetInt("assistant.history_ttl_minutes"),
			SystemPrompt:      v.GetString("assistant.system_prompt"),
		},
		Completion: CompletionConfig{
			BaseURL: v.GetString("completion.base_url"),
			APIKey:  v.GetString("completion.api_key"),
		},
		Travel: TravelConfig{
			BaseURL: v.GetString("travel.base_url"),
			APIKey:  v.GetString("travel.api_key"),
			Tenant:  v.GetString("travel.tenant"),
		},
		Storage: StorageConfig{
			Driver:      v.GetString("storage.driver"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  v.GetString("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		Worker: WorkerConfig{
			NumWorkers: v.GetUint("worker.num_workers"),
			QueueSize:  v.GetUint("worker.queue_size"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)

	// Assistant
	v.SetDefault("assistant.model", d.Assistant.Model)
	v.SetDefault("assistant.max_rounds", d.Assistant.MaxRounds)
	v.SetDefault("assistant.history_ttl_minutes", d.Assistant.HistoryTTLMinutes)
	v.SetDefault("assistant.system_prompt", d.Assistant.SystemPrompt)

	// Completion
	v.SetDefault("completion.base_url", d.Completion.BaseURL)
	v.SetDefault("completion.api_key", d.Completion.APIKey)

	// Travel API
	v.SetDefault("travel.base_url", d.Travel.BaseURL)
	v.SetDefault("travel.api_key", d.Travel.APIKey)
	v.SetDefault("travel.tenant", d.Travel.Tenant)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Worker
	v.SetDefault("worker.num_workers", d.Worker.NumWorkers)
	v.SetDefault("worker.queue_size", d.Worker.QueueSize)
}
