// Command demoserver serves consent-banner pages with a manipulative (v1) and
// a fair (v2) rendition that can be switched at runtime.
// Usage: go run ./cmd/demoserver [port]
// Default port: 9999
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/raysh454/darklens/internal/demoserver"
	"github.com/raysh454/darklens/internal/logging"
)

func main() {
	logger := logging.NewStdoutLogger("demoserver")
	cfg := demoserver.DefaultConfig()

	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			logger.Error("invalid port", logging.F("port", os.Args[1]))
			os.Exit(2)
		}
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := demoserver.NewDemoServer(cfg, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("demo server stopped", logging.Err(err))
		os.Exit(1)
	}
}
