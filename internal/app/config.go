package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/raysh454/darklens/internal/capture"
	"github.com/raysh454/darklens/internal/detector"
	"github.com/raysh454/darklens/internal/enumerator"
	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DARKLENS_"

// Config aggregates the per-package configs the application wires together.
type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string `yaml:"listen_addr"`

	// StorageRoot is the base directory for relative export and database paths.
	StorageRoot string `yaml:"storage_root"`

	Logging  logging.Config  `yaml:"logging"`
	Capture  capture.Config  `yaml:"capture"`
	Detector detector.Config `yaml:"detector"`
	Store    store.Config    `yaml:"store"`

	// Crawl bounds page discovery for site audits.
	Crawl enumerator.Config `yaml:"crawl"`

	// BatchConcurrency bounds how many targets AuditBatch processes at once.
	BatchConcurrency int `yaml:"batch_concurrency"`

	// JobRetentionTime is how long finished jobs stay queryable.
	JobRetentionTime time.Duration `yaml:"job_retention"`
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       ":5000",
		StorageRoot:      "~/.config/darklens",
		Logging:          logging.DefaultConfig(),
		Capture:          capture.DefaultConfig(),
		Detector:         detector.DefaultConfig(),
		Store:            store.DefaultConfig(),
		Crawl:            enumerator.DefaultConfig(),
		BatchConcurrency: 4,
		JobRetentionTime: 30 * time.Minute,
	}
}

// LoadConfig layers, in order: defaults, the YAML file at path (if any), a
// .env file in the working directory (if any), and the process environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if _, err := os.Stat(".env"); err == nil {
		// existing environment variables win over .env entries
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides cfg from lookup. AI_SERVICE_URL and PORT are honoured
// for compatibility with existing deployments.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	var errs []error
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	if port, ok := get("PORT"); ok {
		cfg.ListenAddr = net.JoinHostPort("", port)
	}
	str(EnvPrefix+"LISTEN_ADDR", &cfg.ListenAddr)
	str(EnvPrefix+"STORAGE_ROOT", &cfg.StorageRoot)

	str(EnvPrefix+"LOG_LEVEL", &cfg.Logging.Level)
	str(EnvPrefix+"LOG_FORMAT", &cfg.Logging.Format)

	if v, ok := get(EnvPrefix + "CAPTURE_BACKEND"); ok {
		cfg.Capture.Backend = capture.Backend(v)
	}
	str(EnvPrefix+"EXPORT_DIR", &cfg.Capture.ExportDir)
	duration(EnvPrefix+"CAPTURE_TIMEOUT", &cfg.Capture.Timeout)
	duration(EnvPrefix+"SETTLE_DELAY", &cfg.Capture.SettleDelay)
	integer(EnvPrefix+"VIEWPORT_WIDTH", &cfg.Capture.ViewportWidth)
	integer(EnvPrefix+"VIEWPORT_HEIGHT", &cfg.Capture.ViewportHeight)
	boolean(EnvPrefix+"HEADLESS", &cfg.Capture.Headless)

	if v, ok := get(EnvPrefix + "DETECTOR_BACKEND"); ok {
		cfg.Detector.Backend = detector.Backend(v)
	}
	if v, ok := get("AI_SERVICE_URL"); ok {
		cfg.Detector.URL = v
		if _, explicit := get(EnvPrefix + "DETECTOR_BACKEND"); !explicit {
			cfg.Detector.Backend = detector.BackendRemote
		}
	}
	str(EnvPrefix+"DETECTOR_URL", &cfg.Detector.URL)
	duration(EnvPrefix+"DETECTOR_TIMEOUT", &cfg.Detector.Timeout)
	integer(EnvPrefix+"DETECTOR_RETRIES", &cfg.Detector.RetryMax)

	str(EnvPrefix+"STORE_DRIVER", &cfg.Store.Driver)
	str(EnvPrefix+"STORE_DSN", &cfg.Store.DSN)

	integer(EnvPrefix+"CRAWL_DEPTH", &cfg.Crawl.MaxDepth)
	integer(EnvPrefix+"CRAWL_MAX_PAGES", &cfg.Crawl.MaxPages)

	integer(EnvPrefix+"BATCH_CONCURRENCY", &cfg.BatchConcurrency)
	duration(EnvPrefix+"JOB_RETENTION", &cfg.JobRetentionTime)

	if len(errs) > 0 {
		return fmt.Errorf("environment overrides: %w", errors.Join(errs...))
	}
	return nil
}

// Validate rejects values no component could run with.
func (c *Config) Validate() error {
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("batch_concurrency must be at least 1, got %d", c.BatchConcurrency)
	}
	if c.Crawl.MaxDepth < 0 {
		return fmt.Errorf("crawl.max_depth must not be negative, got %d", c.Crawl.MaxDepth)
	}
	if c.JobRetentionTime < 0 {
		return fmt.Errorf("job_retention must not be negative, got %s", c.JobRetentionTime)
	}
	if c.Capture.Timeout < 0 || c.Detector.Timeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// ResolvePaths expands a leading ~ in StorageRoot and anchors a relative
// export directory and SQLite database file under it.
func (c *Config) ResolvePaths() error {
	root, err := expandPath(c.StorageRoot)
	if err != nil {
		return fmt.Errorf("expanding storage root path: %w", err)
	}
	c.StorageRoot = root
	if root == "" {
		return nil
	}

	if c.Capture.ExportDir != "" && !filepath.IsAbs(c.Capture.ExportDir) {
		c.Capture.ExportDir = filepath.Join(root, c.Capture.ExportDir)
	}
	if c.Store.Driver == "" || c.Store.Driver == store.DriverSQLite {
		dsn := c.Store.DSN
		if dsn != "" && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") && !filepath.IsAbs(dsn) {
			c.Store.DSN = filepath.Join(root, dsn)
		}
	}
	return nil
}

func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}
