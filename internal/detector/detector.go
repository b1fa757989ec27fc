// Package detector turns captures into raw dark-pattern detections. It never
// scores them; the auditor does.
package detector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raysh454/darklens/internal/interfaces"
	"github.com/raysh454/darklens/internal/logging"
)

var ErrUnknownBackend = errors.New("unknown detector backend")

// New constructs the configured detector. An empty backend means heuristic.
func New(cfg Config, logger logging.Logger) (interfaces.Detector, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	backend := Backend(strings.ToLower(strings.TrimSpace(string(cfg.Backend))))
	logger = logger.With(logging.F("component", "detector"), logging.F("backend", string(backend)))

	switch backend {
	case "", BackendHeuristic:
		return NewHeuristicDetector(cfg, logger), nil
	case BackendRemote:
		return NewRemoteDetector(cfg, logger)
	case BackendStatic:
		return NewStaticDetector(cfg.Detections), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
