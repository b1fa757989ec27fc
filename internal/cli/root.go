// Package cli implements the darklens command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raysh454/darklens/internal/app"
	"github.com/raysh454/darklens/internal/capture"
	"github.com/raysh454/darklens/internal/detector"
	"github.com/raysh454/darklens/internal/logging"
)

// ErrBelowThreshold is returned by audit when a score is under --fail-under.
var ErrBelowThreshold = errors.New("trust score below threshold")

// Exit codes returned by Execute.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitThreshold = 3
)

type options struct {
	configPath     string
	logLevel       string
	logFormat      string
	storageRoot    string
	detectorName   string
	captureBackend string

	newApp func(ctx context.Context, cfg *app.Config, logger logging.Logger) (*app.Application, error)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{newApp: app.NewApplication}

	root := &cobra.Command{
		Use:   "darklens",
		Short: "Audit consent flows for GDPR dark patterns",
		Long: "Darklens captures web pages, detects manipulative consent designs and scores them " +
			"against a GDPR / EDPB regulatory taxonomy.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: json or console")
	pf.StringVar(&opts.storageRoot, "storage-root", "", "Directory holding exports and the SQLite database")
	pf.StringVar(&opts.detectorName, "detector", "", "Detector backend: heuristic, remote or static")
	pf.StringVar(&opts.captureBackend, "capture-backend", "", "Capture backend: chromedp or file")

	root.AddCommand(
		newServeCmd(opts),
		newAuditCmd(opts),
		newScoreCmd(opts),
		newCaptureCmd(opts),
		newTaxonomyCmd(),
		newReportCmd(opts),
	)
	return root
}

// Execute runs the command line until it finishes or the process receives
// SIGINT/SIGTERM, and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		if errors.Is(err, ErrBelowThreshold) {
			return ExitThreshold
		}
		return ExitError
	}
	return ExitOK
}

// loadConfig layers the global flags over the config file and environment.
func (o *options) loadConfig(cmd *cobra.Command) (*app.Config, error) {
	cfg, err := app.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	if o.storageRoot != "" {
		cfg.StorageRoot = o.storageRoot
	}
	if o.detectorName != "" {
		cfg.Detector.Backend = detector.Backend(o.detectorName)
	}
	if o.captureBackend != "" {
		cfg.Capture.Backend = capture.Backend(o.captureBackend)
	}
	// stdout carries command output
	cfg.Logging.Output = cmd.ErrOrStderr()
	return cfg, nil
}

// withApp builds the application, runs fn and shuts the application down.
func (o *options) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) error {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}
	return o.runApp(cmd, cfg, fn)
}

func (o *options) runApp(cmd *cobra.Command, cfg *app.Config, fn func(ctx context.Context, a *app.Application) error) error {
	ctx := cmd.Context()
	logger := logging.New(cfg.Logging).With(logging.F("command", cmd.Name()))

	a, err := o.newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Shutdown(context.Background()); err != nil {
			logger.Warn("shutdown", logging.Err(err))
		}
	}()
	return fn(ctx, a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
