// Package api provides the HTTP server exposing the assistant and its
// conversation logs.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string
}
