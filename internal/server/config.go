package server

import "github.com/raysh454/darklens/internal/logging"

type Config struct {
	// ListenAddr is the HTTP listen address for the API server (CLI uses
	// the orchestrator in-process and does not require the network).
	ListenAddr string

	// MaxUploadBytes bounds screenshots posted to /analyze.
	MaxUploadBytes int64

	// LogBodies adds request bodies to the request log. Multipart uploads
	// are never logged.
	LogBodies bool

	Logger logging.Logger
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":5000",
		MaxUploadBytes: 32 << 20,
	}
}
