package detector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/logging"
	"github.com/raysh454/darklens/internal/model"
	"github.com/raysh454/darklens/internal/taxonomy"
)

var ErrNoMarkup = errors.New("capture has no markup")

// Confidence reported per rule. Markup rules cannot see the rendered page, so
// they stay below what a trained model reports for a clear hit.
var ruleConfidence = map[string]float64{
	taxonomy.PreselectedInvasiveDefault: 0.92,
	taxonomy.VisualDistraction:          0.78,
	taxonomy.EmotionalSteering:          0.86,
	taxonomy.HiddenInPlainSight:         0.83,
	taxonomy.MisleadingButton:           0.8,
	taxonomy.OverwhelmingOptions:        0.75,
	taxonomy.AmbiguousWording:           0.7,
}

var (
	containerHint = regexp.MustCompile(`cookie|consent|gdpr|privacy|cmp|newsletter`)
	essentialRe   = regexp.MustCompile(`necessary|essential|required|strictly|functional`)
	acceptRe      = regexp.MustCompile(`\b(accept|agree|allow|yes)\b`)
	rejectRe      = regexp.MustCompile(`\b(reject|decline|refuse|deny|disagree|opt[- ]?out)\b|(necessary|essential) only|only (necessary|essential)|^no,? thanks\b`)
	settingsRe    = regexp.MustCompile(`\b(manage|settings|preferences|options|customi[sz]e|choices|more options|learn more)\b`)
	misleadingRe  = regexp.MustCompile(`^(continue|ok|okay|got it|understood|close|i understand|proceed|sounds good)\b`)
	shamingRe     = regexp.MustCompile(`^no,? i (don'?t|do not|prefer|would rather|like)|\bi (don'?t|do not) (want|care|like)\b|\bi(?:'d| would) rather\b|\bi prefer (not|to (pay|miss|stay))\b|\bmiss out\b|\bi like paying\b|\bi hate\b`)
	doubleNegRe   = regexp.MustCompile(`\b(not|don'?t|never)\b[^.!?]{0,40}\b(not|don'?t|un(check|tick|select|subscribe)|opt[- ]?out)\b`)
	fontSizeRe    = regexp.MustCompile(`font-size\s*:\s*([\d.]+)px`)
	colorRe       = regexp.MustCompile(`(?:^|;)\s*color\s*:\s*(#[0-9a-fA-F]{3,6})`)
	backgroundRe  = regexp.MustCompile(`background(?:-color)?\s*:\s*(#[0-9a-fA-F]{3,6})`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

const controlSelector = `button, a, input[type=button], input[type=submit], [role=button]`

// HeuristicDetector looks for dark patterns in a capture's annotated markup.
// Each rule reports at most one detection per page, boxed on the first
// offending element.
type HeuristicDetector struct {
	cfg    Config
	logger logging.Logger
}

func NewHeuristicDetector(cfg Config, logger logging.Logger) *HeuristicDetector {
	if logger == nil {
		logger = logging.Nop()
	}
	def := DefaultConfig()
	if cfg.MaxToggles <= 0 {
		cfg.MaxToggles = def.MaxToggles
	}
	if cfg.MinFontSize <= 0 {
		cfg.MinFontSize = def.MinFontSize
	}
	if cfg.MinContrast <= 0 {
		cfg.MinContrast = def.MinContrast
	}
	return &HeuristicDetector{cfg: cfg, logger: logger}
}

func (h *HeuristicDetector) Name() string { return string(BackendHeuristic) }

type hit struct {
	label string
	sel   *goquery.Selection
}

func (h *HeuristicDetector) Detect(ctx context.Context, c *model.Capture) ([]auditor.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c == nil || strings.TrimSpace(c.HTML) == "" {
		return nil, ErrNoMarkup
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(c.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	var hits []hit
	seen := map[string]bool{}
	add := func(label string, sel *goquery.Selection) {
		if seen[label] || sel == nil || sel.Length() == 0 {
			return
		}
		seen[label] = true
		hits = append(hits, hit{label: label, sel: sel.First()})
	}

	for _, container := range consentContainers(doc) {
		for _, rule := range []func(*goquery.Selection) (string, *goquery.Selection){
			h.preselected, h.visualDistraction, h.emotionalSteering, h.hiddenInPlainSight,
			h.misleadingButton, h.overwhelmingOptions, h.ambiguousWording,
		} {
			if label, sel := rule(container); label != "" {
				add(label, sel)
			}
		}
	}

	out := make([]auditor.RawDetection, 0, len(hits))
	for _, m := range hits {
		box := boxFor(c, m.sel)
		out = append(out, auditor.NewDetection(m.label, ruleConfidence[m.label], box[:]...))
	}
	h.logger.Debug("heuristic detection finished",
		logging.F("target", c.TargetURL),
		logging.F("detections", len(out)))
	return out, nil
}

// consentContainers returns the outermost elements that look like consent
// UI, or the body when there are none.
func consentContainers(doc *goquery.Document) []*goquery.Selection {
	var out []*goquery.Selection
	var nodes []*html.Node
	doc.Find("body [id], body [class], body [role], body [aria-modal]").Each(func(_ int, s *goquery.Selection) {
		if !looksLikeConsent(s) {
			return
		}
		for _, n := range nodes {
			if isAncestor(n, s.Get(0)) {
				return
			}
		}
		nodes = append(nodes, s.Get(0))
		out = append(out, s)
	})
	if len(out) == 0 {
		out = append(out, doc.Find("body"))
	}
	return out
}

func looksLikeConsent(s *goquery.Selection) bool {
	role, _ := s.Attr("role")
	if role == "dialog" || role == "alertdialog" {
		return true
	}
	if modal, _ := s.Attr("aria-modal"); modal == "true" {
		return true
	}
	id, _ := s.Attr("id")
	class, _ := s.Attr("class")
	return containerHint.MatchString(strings.ToLower(id + " " + class))
}

func isAncestor(anc, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == anc {
			return true
		}
	}
	return false
}

// preselected: a non-essential consent toggle that starts switched on.
func (h *HeuristicDetector) preselected(c *goquery.Selection) (string, *goquery.Selection) {
	var found *goquery.Selection
	c.Find(`input[type=checkbox], input[type=radio], [role=checkbox], [role=switch]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		on := false
		if _, ok := s.Attr("checked"); ok {
			on = true
		}
		if v, _ := s.Attr("aria-checked"); v == "true" {
			on = true
		}
		_, disabled := s.Attr("disabled")
		if !on || disabled || essentialRe.MatchString(toggleLabel(s)) {
			return true
		}
		found = s
		return false
	})
	if found == nil {
		return "", nil
	}
	return taxonomy.PreselectedInvasiveDefault, found
}

// visualDistraction: accepting is a button, rejecting is only a link.
func (h *HeuristicDetector) visualDistraction(c *goquery.Selection) (string, *goquery.Selection) {
	accept, reject := controlsMatching(c, acceptRe), controlsMatching(c, rejectRe)
	if accept == nil || reject == nil {
		return "", nil
	}
	if !looksLikeLink(accept) && looksLikeLink(reject) {
		return taxonomy.VisualDistraction, reject
	}
	return "", nil
}

// emotionalSteering: a control whose label shames the user for declining.
func (h *HeuristicDetector) emotionalSteering(c *goquery.Selection) (string, *goquery.Selection) {
	if s := controlsMatching(c, shamingRe); s != nil {
		return taxonomy.EmotionalSteering, s
	}
	return "", nil
}

// hiddenInPlainSight: reject or settings controls rendered tiny or faint.
func (h *HeuristicDetector) hiddenInPlainSight(c *goquery.Selection) (string, *goquery.Selection) {
	var found *goquery.Selection
	c.Find(controlSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := controlText(s)
		if !rejectRe.MatchString(text) && !settingsRe.MatchString(text) {
			return true
		}
		if size, ok := fontSize(s); ok && size < h.cfg.MinFontSize {
			found = s
			return false
		}
		if ratio, ok := contrast(s); ok && ratio < h.cfg.MinContrast {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return "", nil
	}
	return taxonomy.HiddenInPlainSight, found
}

// misleadingButton: no way to refuse, only a neutral-sounding button that
// in practice accepts.
func (h *HeuristicDetector) misleadingButton(c *goquery.Selection) (string, *goquery.Selection) {
	if controlsMatching(c, rejectRe) != nil {
		return "", nil
	}
	if s := controlsMatching(c, misleadingRe); s != nil {
		return taxonomy.MisleadingButton, s
	}
	return "", nil
}

func (h *HeuristicDetector) overwhelmingOptions(c *goquery.Selection) (string, *goquery.Selection) {
	toggles := c.Find(`input[type=checkbox], [role=checkbox], [role=switch]`)
	if toggles.Length() > h.cfg.MaxToggles {
		return taxonomy.OverwhelmingOptions, c
	}
	return "", nil
}

func (h *HeuristicDetector) ambiguousWording(c *goquery.Selection) (string, *goquery.Selection) {
	var found *goquery.Selection
	c.Find("p, span, label, li, div, h1, h2, h3, h4").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if doubleNegRe.MatchString(ownText(s)) {
			found = s
			return false
		}
		return true
	})
	if found == nil {
		return "", nil
	}
	return taxonomy.AmbiguousWording, found
}

func controlsMatching(c *goquery.Selection, re *regexp.Regexp) *goquery.Selection {
	var found *goquery.Selection
	c.Find(controlSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if re.MatchString(controlText(s)) {
			found = s
			return false
		}
		return true
	})
	return found
}

func looksLikeLink(s *goquery.Selection) bool {
	if goquery.NodeName(s) == "a" {
		if role, _ := s.Attr("role"); role != "button" {
			class, _ := s.Attr("class")
			return !strings.Contains(strings.ToLower(class), "btn") && !strings.Contains(strings.ToLower(class), "button")
		}
	}
	class, _ := s.Attr("class")
	return strings.Contains(strings.ToLower(class), "link")
}

func normalize(s string) string {
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(strings.ToLower(s), " "))
}

func controlText(s *goquery.Selection) string {
	if goquery.NodeName(s) == "input" {
		v, _ := s.Attr("value")
		return normalize(v)
	}
	text := s.Text()
	if strings.TrimSpace(text) == "" {
		text, _ = s.Attr("aria-label")
	}
	return normalize(text)
}

// ownText is the element's text without that of nested block children, so
// a match is boxed on the innermost element.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for n := s.Get(0).FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		} else if n.Type == html.ElementNode {
			switch n.Data {
			case "a", "b", "strong", "em", "i", "u", "small", "span":
				b.WriteString(goquery.NewDocumentFromNode(n).Text())
			}
		}
		b.WriteByte(' ')
	}
	return normalize(b.String())
}

func toggleLabel(s *goquery.Selection) string {
	if lbl := s.Closest("label"); lbl.Length() > 0 {
		return normalize(lbl.Text())
	}
	if id, ok := s.Attr("id"); ok && id != "" {
		doc := s.Parents().Last()
		if lbl := doc.Find(`label[for="` + id + `"]`); lbl.Length() > 0 {
			return normalize(lbl.Text())
		}
	}
	name, _ := s.Attr("name")
	aria, _ := s.Attr("aria-label")
	return normalize(name + " " + aria)
}

// fontSize prefers the computed size recorded at capture time.
func fontSize(s *goquery.Selection) (float64, bool) {
	if v, ok := s.Attr(model.ElementFontAttr); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f, true
		}
	}
	style, _ := s.Attr("style")
	if m := fontSizeRe.FindStringSubmatch(style); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// contrast prefers the computed ratio recorded at capture time and falls
// back to inline colours against the nearest inline background (white when
// none is set).
func contrast(s *goquery.Selection) (float64, bool) {
	if v, ok := s.Attr(model.ElementContrastAttr); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f, true
		}
	}
	style, _ := s.Attr("style")
	m := colorRe.FindStringSubmatch(style)
	if m == nil {
		return 0, false
	}
	fg, ok := parseHex(m[1])
	if !ok {
		return 0, false
	}
	bg := [3]float64{255, 255, 255}
	for n := s; n.Length() > 0; n = n.Parent() {
		st, _ := n.Attr("style")
		if bm := backgroundRe.FindStringSubmatch(st); bm != nil {
			if c, ok := parseHex(bm[1]); ok {
				bg = c
				break
			}
		}
	}
	l1, l2 := luminance(fg), luminance(bg)
	return (math.Max(l1, l2) + 0.05) / (math.Min(l1, l2) + 0.05), true
}

func parseHex(s string) ([3]float64, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return [3]float64{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return [3]float64{}, false
	}
	return [3]float64{float64(v >> 16 & 0xff), float64(v >> 8 & 0xff), float64(v & 0xff)}, true
}

// luminance is the WCAG relative luminance of an sRGB colour.
func luminance(c [3]float64) float64 {
	var lin [3]float64
	for i, v := range c {
		v /= 255
		if v <= 0.03928 {
			lin[i] = v / 12.92
		} else {
			lin[i] = math.Pow((v+0.055)/1.055, 2.4)
		}
	}
	return 0.2126*lin[0] + 0.7152*lin[1] + 0.0722*lin[2]
}

// boxFor resolves the element's recorded rectangle, falling back to the
// whole page.
func boxFor(c *model.Capture, s *goquery.Selection) [4]float64 {
	if v, ok := s.Attr(model.ElementIndexAttr); ok {
		if idx, err := strconv.Atoi(v); err == nil {
			if box, ok := c.BoxFor(idx); ok && box[2] > box[0] && box[3] > box[1] {
				return box
			}
		}
	}
	return c.PageBox()
}
