package main

import (
	"os"

	flightdeskcmder "github.com/flightdeskco/flightdesk/cmd/flightdesk"
)

func main() {
	cmd := flightdeskcmder.NewFlightdeskCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
