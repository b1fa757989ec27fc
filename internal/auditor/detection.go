package auditor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidDetection is the kind of every malformed-input failure.
	ErrInvalidDetection = errors.New("invalid detection")

	// ErrReuseNotAllowed is returned when an Auditor is asked for a second report.
	ErrReuseNotAllowed = errors.New("auditor already used: construct a new Auditor per audit")
)

// DetectionError describes why a detection was rejected. Index is the
// position in the input sequence, or -1 when unknown.
type DetectionError struct {
	Index  int
	Reason string
}

func (e *DetectionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", ErrInvalidDetection, e.Reason)
	}
	return fmt.Sprintf("%s at index %d: %s", ErrInvalidDetection, e.Index, e.Reason)
}

func (e *DetectionError) Unwrap() error { return ErrInvalidDetection }

// RawDetection is one UI element reported by a detector.
//
// Box is [yMin, xMin, yMax, xMax] in the screenshot's pixel space; it is
// passed through to the report untouched. A nil Confidence means 1.0.
type RawDetection struct {
	Label      string    `json:"label"`
	Confidence *float64  `json:"confidence,omitempty"`
	Box        []float64 `json:"box_2d"`
}

// Conf returns the detection confidence with the default applied.
func (d RawDetection) Conf() float64 {
	if d.Confidence == nil {
		return 1.0
	}
	return *d.Confidence
}

// Validate checks the detection shape without consulting any taxonomy.
func (d RawDetection) Validate() error {
	if reason := d.invalidReason(); reason != "" {
		return &DetectionError{Index: -1, Reason: reason}
	}
	return nil
}

func (d RawDetection) invalidReason() string {
	if d.Label == "" {
		return "missing label"
	}
	if d.Confidence != nil && !finite(*d.Confidence) {
		return "confidence is not a finite number"
	}
	if len(d.Box) != 4 {
		return fmt.Sprintf("bounding box must have exactly 4 elements, got %d", len(d.Box))
	}
	for i, v := range d.Box {
		if !finite(v) {
			return fmt.Sprintf("bounding box element %d is not a finite number", i)
		}
	}
	return ""
}

// ValidateDetections validates every detection and reports the first failure
// with its index.
func ValidateDetections(detections []RawDetection) error {
	for i, d := range detections {
		if reason := d.invalidReason(); reason != "" {
			return &DetectionError{Index: i, Reason: reason}
		}
	}
	return nil
}

// NewDetection is a convenience constructor for a detection with an explicit confidence.
func NewDetection(label string, confidence float64, box ...float64) RawDetection {
	c := confidence
	return RawDetection{Label: label, Confidence: &c, Box: box}
}

// ParseDetections decodes a JSON array of detections. Each element needs a
// "label", a "box_2d" (or "boundingBox") of four numbers and an optional
// numeric "confidence".
func ParseDetections(data []byte) ([]RawDetection, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &DetectionError{Index: -1, Reason: "detections must be a JSON array: " + err.Error()}
	}
	out := make([]RawDetection, 0, len(items))
	for i, item := range items {
		d, reason := decodeDetection(item)
		if reason != "" {
			return nil, &DetectionError{Index: i, Reason: reason}
		}
		out = append(out, d)
	}
	return out, nil
}

// UnmarshalJSON accepts both "box_2d" and "boundingBox" and rejects
// non-numeric values instead of coercing them.
func (d *RawDetection) UnmarshalJSON(data []byte) error {
	dec, reason := decodeDetection(data)
	if reason != "" {
		return &DetectionError{Index: -1, Reason: reason}
	}
	*d = dec
	return nil
}

func decodeDetection(data []byte) (RawDetection, string) {
	var raw struct {
		Label       json.RawMessage `json:"label"`
		Confidence  json.RawMessage `json:"confidence"`
		Box2D       json.RawMessage `json:"box_2d"`
		BoundingBox json.RawMessage `json:"boundingBox"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawDetection{}, "detection must be a JSON object"
	}

	var d RawDetection
	if isNull(raw.Label) {
		return d, "missing label"
	}
	if err := json.Unmarshal(raw.Label, &d.Label); err != nil {
		return d, "label must be a string"
	}

	if !isNull(raw.Confidence) {
		var c float64
		if err := json.Unmarshal(raw.Confidence, &c); err != nil {
			return d, "confidence is not numeric"
		}
		d.Confidence = &c
	}

	box := raw.Box2D
	if isNull(box) {
		box = raw.BoundingBox
	}
	if isNull(box) {
		return d, "missing bounding box"
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(box, &elems); err != nil {
		return d, "bounding box must be an array"
	}
	if len(elems) != 4 {
		return d, fmt.Sprintf("bounding box must have exactly 4 elements, got %d", len(elems))
	}
	d.Box = make([]float64, 4)
	for i, e := range elems {
		if isNull(e) {
			return d, fmt.Sprintf("bounding box element %d is not numeric", i)
		}
		if err := json.Unmarshal(e, &d.Box[i]); err != nil {
			return d, fmt.Sprintf("bounding box element %d is not numeric", i)
		}
	}

	if reason := d.invalidReason(); reason != "" {
		return d, reason
	}
	return d, ""
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
