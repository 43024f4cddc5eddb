// Package flightdeskcmder provides the root flightdesk command.
package flightdeskcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/flightdeskco/flightdesk/cmd/flightdesk/config"
	servecmder "github.com/flightdeskco/flightdesk/cmd/flightdesk/serve"
	versioncmder "github.com/flightdeskco/flightdesk/cmd/version"
)

const flightdeskLongDesc string = `FlightDesk is a conversational travel assistant backend.

Run the service using:
  flightdesk serve     Run the assistant HTTP server

Manage configuration using:
  flightdesk config    Get, set, or list configuration values`

const flightdeskShortDesc string = "FlightDesk - conversational travel assistant"

func NewFlightdeskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flightdesk",
		Short: flightdeskShortDesc,
		Long:  flightdeskLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory containing config.toml (default: working directory)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
