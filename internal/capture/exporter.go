package capture

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/raysh454/darklens/internal/model"
)

// Exporter writes screenshots into a directory as site_audit_<8 hex>.png and
// serves them back.
type Exporter struct {
	dir string
}

func NewExporter(dir string) (*Exporter, error) {
	if dir == "" {
		dir = DefaultConfig().ExportDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve export dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{dir: abs}, nil
}

func (e *Exporter) Dir() string { return e.dir }

// FileName derives the export name from the capture ID, or a fresh one.
func FileName(id string) string {
	hex := strings.ReplaceAll(id, "-", "")
	if len(hex) < 8 {
		hex = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return "site_audit_" + hex[:8] + ".png"
}

// Save writes c.Image and records the absolute path on c.ImagePath.
func (e *Exporter) Save(c *model.Capture) (string, error) {
	if c == nil || len(c.Image) == 0 {
		return "", ErrEmptyImage
	}
	path := filepath.Join(e.dir, FileName(c.ID))
	if err := os.WriteFile(path, c.Image, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	c.ImagePath = path
	return path, nil
}

// Handler serves the export directory. Mount it under a stripped prefix.
func (e *Exporter) Handler() http.Handler {
	return http.FileServer(http.Dir(e.dir))
}
