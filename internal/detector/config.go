package detector

import (
	"time"

	"github.com/raysh454/darklens/internal/auditor"
)

type Backend string

const (
	BackendHeuristic Backend = "heuristic"
	BackendRemote    Backend = "remote"
	BackendStatic    Backend = "static"
)

// Config configures detector backends.
type Config struct {
	Backend Backend `yaml:"backend"`

	// URL is the inference endpoint used by the remote backend, e.g.
	// http://localhost:8000/analyze.
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryMax     int           `yaml:"retry_max"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max"`

	// Heuristic thresholds.
	MaxToggles  int     `yaml:"max_toggles"`
	MinFontSize float64 `yaml:"min_font_size"`
	MinContrast float64 `yaml:"min_contrast"`

	// Detections returned by the static backend. Empty means MockDetections.
	Detections []auditor.RawDetection `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Backend:      BackendHeuristic,
		URL:          "http://localhost:8000/analyze",
		Timeout:      60 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 500 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		MaxToggles:   8,
		MinFontSize:  11,
		MinContrast:  3,
	}
}
