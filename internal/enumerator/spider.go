package enumerator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/utils"
)

var ErrRootUnreachable = errors.New("root page unreachable")

// maxBodyBytes bounds how much of a page is parsed for links.
const maxBodyBytes = 4 << 20

// Spider walks the links of a site breadth first, staying on the root's host.
type Spider struct {
	cfg    Config
	client *http.Client
	logger logging.Logger
}

// NewSpider builds a Spider. A nil client gets a retrying client built from cfg.
func NewSpider(cfg Config, client *http.Client, logger logging.Logger) *Spider {
	def := DefaultConfig()
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.With(logging.F("component", "enumerator"))

	if client == nil {
		rc := retryablehttp.NewClient()
		rc.Logger = nil
		rc.RetryMax = max(0, cfg.RetryMax)
		rc.HTTPClient.Timeout = cfg.Timeout
		client = rc.StandardClient()
	}
	return &Spider{cfg: cfg, client: client, logger: logger}
}

type page struct {
	url   string
	depth int
}

// Enumerate returns root followed by the same-site pages reachable from it,
// in discovery order. Pages that fail to load are kept but not followed;
// only a failing root is an error.
func (s *Spider) Enumerate(ctx context.Context, root string) ([]string, error) {
	start, err := utils.NavigableURL(root)
	if err != nil {
		return nil, err
	}
	rootURL, err := url.Parse(start)
	if err != nil {
		return nil, err
	}
	if rootURL.Scheme != "http" && rootURL.Scheme != "https" {
		// nothing to walk for file targets
		return []string{start}, nil
	}

	seen := map[string]bool{}
	if key, err := utils.CanonicalTarget(start); err == nil {
		seen[key] = true
	}
	results := []string{start}
	queue := []page{{url: start, depth: 0}}

	for len(queue) > 0 && len(results) < s.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= s.cfg.MaxDepth {
			continue
		}

		links, err := s.links(ctx, cur.url)
		if err != nil {
			if cur.depth == 0 {
				return nil, fmt.Errorf("%w: %w", ErrRootUnreachable, err)
			}
			s.logger.Warn("skipping page", logging.F("url", cur.url), logging.Err(err))
			continue
		}

		for _, link := range links {
			if !sameSite(rootURL, link) {
				continue
			}
			key, err := utils.CanonicalTarget(link.String())
			if err != nil || seen[key] {
				continue
			}
			seen[key] = true
			results = append(results, link.String())
			queue = append(queue, page{url: link.String(), depth: cur.depth + 1})
			if len(results) >= s.cfg.MaxPages {
				break
			}
		}
	}

	s.logger.Debug("enumeration finished", logging.F("root", start), logging.F("pages", len(results)))
	return results, nil
}

// links fetches target and returns the absolute http(s) URLs its anchors
// point to. Non-HTML responses have no links.
func (s *Spider) links(ctx context.Context, target string) ([]*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("GET %s: status %d", target, resp.StatusCode)
	}
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt != "text/html" && mt != "application/xhtml+xml" {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}

	base := resp.Request.URL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	var out []*url.URL
	doc.Find("a[href], area[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		u, err := base.Parse(href)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment = ""
		u.RawFragment = ""
		out = append(out, u)
	})
	return out, nil
}

func sameSite(root, u *url.URL) bool {
	strip := func(h string) string { return strings.TrimPrefix(strings.ToLower(h), "www.") }
	return strip(root.Hostname()) == strip(u.Hostname()) && root.Port() == u.Port()
}
