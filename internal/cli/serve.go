package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/darklens/internal/app"
	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var (
		addr      string
		logBodies bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}

			return opts.runApp(cmd, cfg, func(ctx context.Context, a *app.Application) error {
				srv, err := server.NewServer(server.Config{
					ListenAddr: cfg.ListenAddr,
					LogBodies:  logBodies,
					Logger:     a.Logger.With(logging.F("component", "server")),
				}, a.Orch)
				if err != nil {
					return err
				}
				defer srv.Close()

				ln, err := net.Listen("tcp", cfg.ListenAddr)
				if err != nil {
					return err
				}
				return serve(ctx, srv.HTTPServer(), ln, a.Logger)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :5000)")
	cmd.Flags().BoolVar(&logBodies, "log-bodies", false, "Log JSON request bodies")
	return cmd
}

// serve runs hs on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, hs *http.Server, ln net.Listener, logger logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logging.F("addr", ln.Addr().String()))
		errCh <- hs.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
