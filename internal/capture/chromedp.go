package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/model"
	"github.com/raysh454/darklens/internal/utils"
)

// annotateJS tags every candidate element with its index, font size and
// text contrast, and returns their page rectangles.
var annotateJS = fmt.Sprintf(`(() => {
  const sel = 'a,button,input,select,textarea,label,summary,[role=button],[role=checkbox],[role=switch],[onclick],p,span,li,h1,h2,h3,h4,div[class*=cookie],div[id*=cookie],div[class*=consent],div[id*=consent],div[class*=banner]';
  const rgb = s => (s.match(/[\d.]+/g) || []).map(Number);
  const lum = c => {
    const [r, g, b] = c.slice(0, 3).map(v => { v /= 255; return v <= 0.03928 ? v / 12.92 : Math.pow((v + 0.055) / 1.055, 2.4); });
    return 0.2126 * r + 0.7152 * g + 0.0722 * b;
  };
  const bg = el => {
    for (let n = el; n; n = n.parentElement) {
      const c = rgb(getComputedStyle(n).backgroundColor);
      if (c.length >= 3 && (c.length < 4 || c[3] > 0)) return c;
    }
    return [255, 255, 255];
  };
  const out = [];
  let i = 0;
  document.querySelectorAll(sel).forEach(el => {
    const r = el.getBoundingClientRect();
    const cs = getComputedStyle(el);
    const fg = rgb(cs.color);
    const l1 = lum(fg.length >= 3 ? fg : [0, 0, 0]), l2 = lum(bg(el));
    const ratio = (Math.max(l1, l2) + 0.05) / (Math.min(l1, l2) + 0.05);
    el.setAttribute(%q, String(i));
    el.setAttribute(%q, String(parseFloat(cs.fontSize) || 0));
    el.setAttribute(%q, ratio.toFixed(2));
    out.push({index: i, tag: el.tagName.toLowerCase(),
      box: [r.top + window.scrollY, r.left + window.scrollX, r.bottom + window.scrollY, r.right + window.scrollX]});
    i++;
  });
  return out;
})()`, model.ElementIndexAttr, model.ElementFontAttr, model.ElementContrastAttr)

const contentSizeJS = `[Math.max(document.documentElement.scrollWidth, document.body ? document.body.scrollWidth : 0),
  Math.max(document.documentElement.scrollHeight, document.body ? document.body.scrollHeight : 0)]`

// ChromeDPCapturer renders targets in headless Chrome. Every capture runs in
// its own browser so captures are isolated and may run concurrently.
type ChromeDPCapturer struct {
	cfg    Config
	logger logging.Logger

	allocCtx    context.Context
	cancelAlloc context.CancelFunc

	closeOnce sync.Once
}

func NewChromeDPCapturer(cfg Config, logger logging.Logger) (*ChromeDPCapturer, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	def := DefaultConfig()
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = def.ViewportWidth
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = def.ViewportHeight
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = def.IdleAfter
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = def.MaxHeight
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	logger.Debug("created chromedp capturer",
		logging.F("idle_after", cfg.IdleAfter),
		logging.F("settle_delay", cfg.SettleDelay),
		logging.F("headless", cfg.Headless))

	return &ChromeDPCapturer{cfg: cfg, logger: logger, allocCtx: allocCtx, cancelAlloc: cancel}, nil
}

// waitNetworkIdle returns a channel that is closed once no request has been
// in flight for idleAfter.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) <-chan struct{} {
	idle := make(chan struct{})
	var (
		mu       sync.Mutex
		inflight = map[network.RequestID]struct{}{}
		timer    *time.Timer
		once     sync.Once
	)

	// must be called with mu held
	rearm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(idleAfter, func() {
			mu.Lock()
			quiet := len(inflight) == 0
			mu.Unlock()
			if quiet {
				once.Do(func() { close(idle) })
			}
		})
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		mu.Lock()
		defer mu.Unlock()
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			inflight[e.RequestID] = struct{}{}
			if timer != nil {
				timer.Stop()
			}
		case *network.EventLoadingFinished:
			delete(inflight, e.RequestID)
			if len(inflight) == 0 {
				rearm()
			}
		case *network.EventLoadingFailed:
			delete(inflight, e.RequestID)
			if len(inflight) == 0 {
				rearm()
			}
		}
	})

	return idle
}

// Capture navigates to target, waits for the page to settle, annotates it and
// takes a full-page screenshot.
func (c *ChromeDPCapturer) Capture(ctx context.Context, target string) (*model.Capture, error) {
	navURL, err := utils.NavigableURL(target)
	if err != nil {
		return nil, err
	}
	if err := c.allocCtx.Err(); err != nil {
		return nil, errors.New("capturer is closed")
	}

	tabCtx, cancelTab := chromedp.NewContext(c.allocCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.cfg.Timeout)
	defer cancelTimeout()

	started := time.Now()
	idle := waitNetworkIdle(tabCtx, c.cfg.IdleAfter)

	if err := chromedp.Run(tabCtx, network.Enable(), chromedp.Navigate(navURL)); err != nil {
		return nil, c.wrapErr(ctx, fmt.Errorf("navigate %s: %w", navURL, err))
	}

	settle := time.NewTimer(c.cfg.SettleDelay)
	defer settle.Stop()
	select {
	case <-idle:
	case <-settle.C:
		c.logger.Debug("network not idle before settle delay", logging.F("target", navURL))
	case <-tabCtx.Done():
		return nil, c.wrapErr(ctx, tabCtx.Err())
	}

	var size []int
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(contentSizeJS, &size)); err != nil {
		return nil, c.wrapErr(ctx, fmt.Errorf("measure page: %w", err))
	}
	width, height := c.cfg.ViewportWidth, c.cfg.ViewportHeight
	if len(size) == 2 {
		width = max(width, size[0])
		height = min(max(height, size[1]), c.cfg.MaxHeight)
	}

	var (
		elements []model.ElementBox
		html     string
		image    []byte
	)
	err = chromedp.Run(tabCtx,
		emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false),
		chromedp.Evaluate(annotateJS, &elements),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.CaptureScreenshot(&image),
	)
	if err != nil {
		return nil, c.wrapErr(ctx, fmt.Errorf("capture %s: %w", navURL, err))
	}

	c.logger.Info("captured page",
		logging.F("target", navURL),
		logging.F("width", width),
		logging.F("height", height),
		logging.F("elements", len(elements)),
		logging.F("duration", time.Since(started)))

	return &model.Capture{
		ID:         uuid.NewString(),
		TargetURL:  target,
		Image:      image,
		HTML:       html,
		Elements:   elements,
		Width:      width,
		Height:     height,
		CapturedAt: time.Now().UTC(),
	}, nil
}

// wrapErr prefers the caller's cancellation over chromedp's generic errors.
func (c *ChromeDPCapturer) wrapErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (c *ChromeDPCapturer) Close() error {
	c.closeOnce.Do(c.cancelAlloc)
	return nil
}
