package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/raysh454/darklens/internal/capture"
	"github.com/raysh454/darklens/internal/detector"
	"github.com/raysh454/darklens/internal/enumerator"
	"github.com/raysh454/darklens/internal/interfaces"
	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/store"
)

// Components are the pipeline stages an Orchestrator drives. Any of them may
// be nil; operations that need a missing one fail with ErrNotConfigured.
type Components struct {
	Capturer interfaces.Capturer
	Detector interfaces.Detector
	Store    interfaces.ReportStore
	Exporter *capture.Exporter
	Spider   interfaces.Enumerator

	// Fallback runs when Detector reports detector.ErrNoMarkup, e.g. for an
	// uploaded screenshot without its page source.
	Fallback interfaces.Detector
}

// NewComponents builds the configured capturer, detector, report store,
// screenshot exporter and site spider. cfg paths should already be resolved.
func NewComponents(ctx context.Context, cfg *Config, logger logging.Logger) (*Components, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.Nop()
	}

	exp, err := capture.NewExporter(cfg.Capture.ExportDir)
	if err != nil {
		return nil, fmt.Errorf("new exporter: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	det, err := detector.New(cfg.Detector, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("new detector: %w", err)
	}

	capt, err := capture.New(cfg.Capture, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("new capturer: %w", err)
	}

	comps := &Components{
		Capturer: capt,
		Detector: det,
		Store:    st,
		Exporter: exp,
		Spider:   enumerator.NewSpider(cfg.Crawl, nil, logger),
	}
	if _, ok := det.(*detector.HeuristicDetector); ok {
		comps.Fallback = detector.NewStaticDetector(nil)
	}
	return comps, nil
}

// Close releases the capturer's browser and the store's database handle.
// Any ongoing audit will fail.
func (c *Components) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Capturer != nil {
		if err := c.Capturer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close capturer: %w", err))
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
