package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/raysh454/darklens/internal/logging"
)

// Application is the global runtime state container.
// It holds config and the core services that are shared across commands
// (orchestrator, components, logger). Pass Application into modules that need
// access to the global state rather than using package-level variables.
type Application struct {
	Config     *Config
	Logger     logging.Logger
	Components *Components
	Orch       *Orchestrator
}

// NewApplication resolves paths, opens the pipeline components and builds the
// orchestrator. A nil logger is built from cfg.Logging.
func NewApplication(ctx context.Context, cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.ResolvePaths(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.New(cfg.Logging)
	}

	if cfg.StorageRoot != "" {
		if err := os.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
			logger.Warn("creating storage root directory", logging.F("path", cfg.StorageRoot), logging.Err(err))
		}
	}

	comps, err := NewComponents(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build components: %w", err)
	}

	orch := NewOrchestrator(cfg, comps, logger.With(logging.F("component", "orchestrator")))
	logger.Debug("application ready",
		logging.F("capture_backend", string(cfg.Capture.Backend)),
		logging.F("detector", comps.Detector.Name()),
		logging.F("store_driver", cfg.Store.Driver))

	return &Application{
		Config:     cfg,
		Logger:     logger,
		Components: comps,
		Orch:       orch,
	}, nil
}

// Shutdown stops running jobs with a bounded wait, then closes the components.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		a.Orch.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		a.Logger.Warn("orchestrator shutdown timed out", logging.Err(shutdownCtx.Err()))
	}

	return a.Components.Close()
}
