// Package api exposes the vector store operations over a local HTTP server,
// forwarding to the lifecycle-managing client and normalizing its errors.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8600")
	ListenAddr string
}
