package capture

import "time"

type Backend string

const (
	BackendChromeDP Backend = "chromedp"
	BackendFile     Backend = "file"
)

// Config configures capture backends and the screenshot exporter.
type Config struct {
	Backend Backend `yaml:"backend"`

	// ExportDir receives site_audit_*.png files.
	ExportDir string `yaml:"export_dir"`

	// Timeout bounds a whole capture, navigation included.
	Timeout time.Duration `yaml:"timeout"`

	// IdleAfter is how long the network must stay quiet to count as idle.
	IdleAfter time.Duration `yaml:"idle_after"`

	// SettleDelay is the longest we wait for idle after navigation. Consent
	// banners are usually injected late, so this is also a minimum-ish wait.
	SettleDelay time.Duration `yaml:"settle_delay"`

	ViewportWidth  int  `yaml:"viewport_width"`
	ViewportHeight int  `yaml:"viewport_height"`
	Headless       bool `yaml:"headless"`

	// MaxHeight caps full-page screenshots of endless pages.
	MaxHeight int `yaml:"max_height"`
}

func DefaultConfig() Config {
	return Config{
		Backend:        BackendChromeDP,
		ExportDir:      "exports",
		Timeout:        45 * time.Second,
		IdleAfter:      500 * time.Millisecond,
		SettleDelay:    4 * time.Second,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Headless:       true,
		MaxHeight:      16384,
	}
}
