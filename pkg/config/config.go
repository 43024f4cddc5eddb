// Package config manages the persistent flightdesk configuration: a
// config.toml file layered under environment variables and CLI flags via
// viper.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Configer loads and saves the config.toml file in a target directory.
type Configer struct {
	targetPath string
}

// NewConfiger resolves the config directory. An empty override means the
// current working directory. A missing directory leaves the target path
// empty; LoadConfig then returns defaults and SaveConfig errors clearly.
func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	dir := override
	if dir == "" {
		dir = "."
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfger, nil
		}
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config dir %q is not a directory", dir)
	}

	cfger.targetPath = filepath.Join(dir, configFile)

	return cfger, nil
}

// ValidConfigKeys returns the list of all supported configuration key
// names, in a stable order matching the TOML section layout.
func ValidConfigKeys() []string {
	ordered := []string{
		"server.listen",
		"assistant.model",
		"assistant.max_rounds",
		"assistant.history_ttl_minutes",
		"assistant.system_prompt",
		"completion.base_url",
		"completion.api_key",
		"travel.base_url",
		"travel.api_key",
		"travel.tenant",
		"storage.driver",
		"storage.sqlite_path",
		"storage.postgres_dsn",
		"events.provider",
		"events.brokers",
		"events.topic",
		"worker.num_workers",
		"worker.queue_size",
	}

	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	seen := make(map[string]bool, len(result))
	for _, k := range result {
		seen[k] = true
	}
	for k := range configKeys {
		if !seen[k] {
			result = append(result, k)
		}
	}

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target
// directory. If the file does not exist, returns NewDefaultConfig() so
// callers always receive a fully-populated Config with sane defaults.
// Fields explicitly set in the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}

	if cfg.Assistant.Model == "" {
		cfg.Assistant.Model = defaults.Assistant.Model
	}
	if cfg.Assistant.MaxRounds == 0 {
		cfg.Assistant.MaxRounds = defaults.Assistant.MaxRounds
	}
	if cfg.Assistant.HistoryTTLMinutes == 0 {
		cfg.Assistant.HistoryTTLMinutes = defaults.Assistant.HistoryTTLMinutes
	}

	if cfg.Completion.BaseURL == "" {
		cfg.Completion.BaseURL = defaults.Completion.BaseURL
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = defaults.Storage.Driver
	}

	if cfg.Events.Provider == "" {
		cfg.Events.Provider = defaults.Events.Provider
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = defaults.Events.Topic
	}

	if cfg.Worker.NumWorkers == 0 {
		cfg.Worker.NumWorkers = defaults.Worker.NumWorkers
	}
	if cfg.Worker.QueueSize == 0 {
		cfg.Worker.QueueSize = defaults.Worker.QueueSize
	}
}

// SaveConfig persists the configuration to config.toml in the target directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
