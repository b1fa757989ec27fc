// Package capture renders audit targets into screenshots plus annotated
// markup. Backends are registered by name and picked from Config.Backend.
package capture

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/raysh454/darklens/internal/interfaces"
	"github.com/raysh454/darklens/internal/logging"
)

var ErrUnknownBackend = errors.New("capture backend not registered")

// BackendConstructor builds a Capturer from cfg.
type BackendConstructor func(cfg Config, logger logging.Logger) (interfaces.Capturer, error)

var (
	mu       sync.RWMutex
	registry = map[string]BackendConstructor{}
)

func init() {
	RegisterBackend(string(BackendChromeDP), func(cfg Config, logger logging.Logger) (interfaces.Capturer, error) {
		return NewChromeDPCapturer(cfg, logger)
	})
	RegisterBackend(string(BackendFile), func(cfg Config, logger logging.Logger) (interfaces.Capturer, error) {
		return NewFileCapturer(cfg, logger), nil
	})
}

// RegisterBackend registers a named backend constructor. Names are
// case-insensitive; registering a name again replaces the constructor.
func RegisterBackend(name string, ctor BackendConstructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = ctor
}

// New constructs the configured backend. An empty backend means chromedp.
func New(cfg Config, logger logging.Logger) (interfaces.Capturer, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	backend := strings.ToLower(strings.TrimSpace(string(cfg.Backend)))
	if backend == "" {
		backend = string(BackendChromeDP)
	}

	mu.RLock()
	ctor, ok := registry[backend]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, backend, ListBackends())
	}

	c, err := ctor(cfg, logger.With(logging.F("component", "capture"), logging.F("backend", backend)))
	if err != nil {
		return nil, fmt.Errorf("construct capture backend %q: %w", backend, err)
	}
	if c == nil {
		return nil, errors.New("capture constructor returned nil")
	}
	return c, nil
}

// ListBackends returns the registered backend names, sorted.
func ListBackends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
