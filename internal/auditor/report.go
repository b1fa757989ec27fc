package auditor

import "github.com/raysh454/darklens/internal/taxonomy"

// Status is the compliance classification of a finished audit.
type Status string

const (
	StatusCompliant    Status = "Compliant"
	StatusNonCompliant Status = "Non-Compliant"
)

const (
	FindingType   = "Dark Pattern Detected"
	OutcomeFailed = "FAILED"
)

// Report is the sole output of an audit. Its JSON encoding is the contract
// consumed by the frontend and by stored records.
type Report struct {
	Summary             Summary          `json:"report_summary"`
	VisualAudit         VisualAudit      `json:"visual_audit"`
	RegulatoryBreakdown []BreakdownEntry `json:"regulatory_breakdown"`
}

type Summary struct {
	TargetURL       string `json:"target_url"`
	TrustScore      int    `json:"trust_score"`
	Status          Status `json:"status"`
	AuditTimestamp  string `json:"audit_timestamp"`
	TotalViolations int    `json:"total_violations"`
}

type VisualAudit struct {
	Detections []Finding `json:"detections"`
}

// Finding is one gated detection, shaped for drawing boxes over the screenshot.
type Finding struct {
	Type        string            `json:"type"`
	Category    taxonomy.Category `json:"category"`
	Pattern     string            `json:"pattern"`
	Confidence  float64           `json:"confidence"`
	Coordinates Coordinates       `json:"coordinates"`
	Explanation string            `json:"explanation"`
}

type Coordinates struct {
	YMin float64 `json:"y_min"`
	XMin float64 `json:"x_min"`
	YMax float64 `json:"y_max"`
	XMax float64 `json:"x_max"`
}

// BreakdownEntry records one failed regulation citation.
type BreakdownEntry struct {
	Article      string `json:"article"`
	Finding      string `json:"finding"`
	Impact       string `json:"impact"`
	SuggestedFix string `json:"suggested_fix"`
}

// Compliant reports whether the summary status is Compliant.
func (r *Report) Compliant() bool {
	return r != nil && r.Summary.Status == StatusCompliant
}

// Articles returns the failed citations in report order.
func (r *Report) Articles() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.RegulatoryBreakdown))
	for _, b := range r.RegulatoryBreakdown {
		out = append(out, b.Article)
	}
	return out
}
