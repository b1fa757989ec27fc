package model

import "time"

// Capture is a rendered page as handed from a capturer to a detector.
type Capture struct {
	// ID identifies the capture; it is also embedded in the screenshot file name.
	ID string `json:"id"`

	TargetURL string `json:"target_url"`

	// ImagePath is where the screenshot was exported, if it was.
	ImagePath string `json:"file_path,omitempty"`

	// Image holds the PNG bytes.
	Image []byte `json:"-"`

	// HTML is the page markup after interactive elements were annotated with
	// ElementIndexAttr. Empty when the capturer only had an image.
	HTML string `json:"-"`

	// Elements are the page rectangles of the annotated elements.
	Elements []ElementBox `json:"elements,omitempty"`

	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
}

// Attributes set on annotated elements. ElementIndexAttr holds
// ElementBox.Index; the others carry computed style the markup alone lacks.
const (
	ElementIndexAttr    = "data-darklens-idx"
	ElementFontAttr     = "data-darklens-font"
	ElementContrastAttr = "data-darklens-contrast"
)

// ElementBox is the on-page rectangle of one annotated element, in
// [yMin, xMin, yMax, xMax] page pixels.
type ElementBox struct {
	Index int        `json:"index"`
	Tag   string     `json:"tag"`
	Box   [4]float64 `json:"box"`
}

// PageBox is the rectangle covering the whole capture.
func (c *Capture) PageBox() [4]float64 {
	if c == nil {
		return [4]float64{}
	}
	return [4]float64{0, 0, float64(c.Height), float64(c.Width)}
}

// BoxFor returns the rectangle for an annotated element index.
func (c *Capture) BoxFor(index int) ([4]float64, bool) {
	if c == nil {
		return [4]float64{}, false
	}
	for _, e := range c.Elements {
		if e.Index == index {
			return e.Box, true
		}
	}
	return [4]float64{}, false
}
