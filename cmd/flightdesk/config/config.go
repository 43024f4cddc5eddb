// Package configcmder provides the config command for managing persistent
// flightdesk configuration.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent flightdesk configuration.

Configuration is stored as config.toml and provides default values for
command flags. CLI flags and FLIGHTDESK_* environment variables always
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen,
  assistant.model, assistant.max_rounds, assistant.history_ttl_minutes,
  completion.base_url, completion.api_key,
  travel.base_url, travel.api_key, travel.tenant,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  events.provider, events.brokers, events.topic,
  worker.num_workers, worker.queue_size

Use subcommands to get, set, or list configuration values:
  flightdesk config set <key> <value>    Set a configuration value
  flightdesk config get <key>            Get a configuration value
  flightdesk config list                 List all configuration values

Examples:
  flightdesk config set assistant.model gpt-4o
  flightdesk config set storage.driver sqlite
  flightdesk config get server.listen
  flightdesk config list`

const configShortDesc string = "Manage persistent flightdesk configuration"

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
