package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/model"
)

var ErrEmptyImage = errors.New("empty screenshot")

// FromImage wraps an already captured screenshot. html may be empty.
func FromImage(targetURL string, img []byte, html string) (*model.Capture, error) {
	if len(img) == 0 {
		return nil, ErrEmptyImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return &model.Capture{
		ID:         uuid.NewString(),
		TargetURL:  targetURL,
		Image:      img,
		HTML:       html,
		Width:      cfg.Width,
		Height:     cfg.Height,
		CapturedAt: time.Now().UTC(),
	}, nil
}

// FileCapturer "captures" screenshots that already exist on disk. The target
// is a path to a PNG or JPEG; a sibling file with the same stem and an .html
// extension is loaded as the page markup when present.
type FileCapturer struct {
	cfg    Config
	logger logging.Logger
}

func NewFileCapturer(cfg Config, logger logging.Logger) *FileCapturer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &FileCapturer{cfg: cfg, logger: logger}
}

func (f *FileCapturer) Capture(ctx context.Context, target string) (*model.Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(strings.TrimSpace(target), "file://")
	img, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}

	var html string
	sibling := strings.TrimSuffix(path, filepath.Ext(path)) + ".html"
	if b, err := os.ReadFile(sibling); err == nil {
		html = string(b)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read markup: %w", err)
	}

	c, err := FromImage(target, img, html)
	if err != nil {
		return nil, err
	}
	c.ImagePath = path
	f.logger.Debug("loaded capture from disk",
		logging.F("path", path),
		logging.F("has_html", html != ""))
	return c, nil
}

func (f *FileCapturer) Close() error { return nil }
