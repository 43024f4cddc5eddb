package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent flightdesk configuration stored as
// config.toml in the config directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Server     ServerConfig     `toml:"server"`
	Assistant  AssistantConfig  `toml:"assistant"`
	Completion CompletionConfig `toml:"completion"`
	Travel     TravelConfig     `toml:"travel"`
	Storage    StorageConfig    `toml:"storage"`
	Events     EventsConfig     `toml:"events"`
	Worker     WorkerConfig     `toml:"worker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// AssistantConfig holds orchestrator settings.
type AssistantConfig struct {
	Model             string `toml:"model,omitempty"`
	MaxRounds         int    `toml:"max_rounds,omitempty"`
	HistoryTTLMinutes int    `toml:"history_ttl_minutes,omitempty"`
	SystemPrompt      string `toml:"system_prompt,omitempty"`
}

// CompletionConfig holds completion provider settings. The API key is
// normally supplied via FLIGHTDESK_COMPLETION_API_KEY rather than the
// config file.
type CompletionConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
	APIKey  string `toml:"api_key,omitempty"`
}

// TravelConfig holds travel API client settings.
type TravelConfig struct {
	BaseURL string `toml:"base_url,omitempty"`
	APIKey  string `toml:"api_key,omitempty"`
	Tenant  string `toml:"tenant,omitempty"`
}

// StorageConfig holds conversation store settings.
type StorageConfig struct {
	// Driver selects the backend: "memory", "sqlite", or "postgres".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventsConfig holds event stream publisher settings.
type EventsConfig struct {
	// Provider selects the backend: "nop" or "kafka".
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// WorkerConfig holds async worker pool settings.
type WorkerConfig struct {
	NumWorkers uint `toml:"num_workers,omitempty"`
	QueueSize  uint `toml:"queue_size,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"assistant.model": {
		get: func(c *Config) string { return c.Assistant.Model },
		set: func(c *Config, v string) error { c.Assistant.Model = v; return nil },
	},
	"assistant.max_rounds": {
		get: func(c *Config) string {
			if c.Assistant.MaxRounds == 0 {
				return ""
			}
			return strconv.Itoa(c.Assistant.MaxRounds)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for assistant.max_rounds: %w", err)
			}
			c.Assistant.MaxRounds = n
			return nil
		},
	},
	"assistant.history_ttl_minutes": {
		get: func(c *Config) string {
			if c.Assistant.HistoryTTLMinutes == 0 {
				return ""
			}
			return strconv.Itoa(c.Assistant.HistoryTTLMinutes)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for assistant.history_ttl_minutes: %w", err)
			}
			c.Assistant.HistoryTTLMinutes = n
			return nil
		},
	},
	"assistant.system_prompt": {
		get: func(c *Config) string { return c.Assistant.SystemPrompt },
		set: func(c *Config, v string) error { c.Assistant.SystemPrompt = v; return nil },
	},
	"completion.base_url": {
		get: func(c *Config) string { return c.Completion.BaseURL },
		set: func(c *Config, v string) error { c.Completion.BaseURL = v; return nil },
	},
	"completion.api_key": {
		get: func(c *Config) string { return c.Completion.APIKey },
		set: func(c *Config, v string) error { c.Completion.APIKey = v; return nil },
	},
	"travel.base_url": {
		get: func(c *Config) string { return c.Travel.BaseURL },
		set: func(c *Config, v string) error { c.Travel.BaseURL = v; return nil },
	},
	"travel.api_key": {
		get: func(c *Config) string { return c.Travel.APIKey },
		set: func(c *Config, v string) error { c.Travel.APIKey = v; return nil },
	},
	"travel.tenant": {
		get: func(c *Config) string { return c.Travel.Tenant },
		set: func(c *Config, v string) error { c.Travel.Tenant = v; return nil },
	},
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"worker.num_workers": {
		get: func(c *Config) string {
			if c.Worker.NumWorkers == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Worker.NumWorkers), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for worker.num_workers: %w", err)
			}
			c.Worker.NumWorkers = uint(n)
			return nil
		},
	},
	"worker.queue_size": {
		get: func(c *Config) string {
			if c.Worker.QueueSize == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Worker.QueueSize), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for worker.queue_size: %w", err)
			}
			c.Worker.QueueSize = uint(n)
			return nil
		},
	},
}
