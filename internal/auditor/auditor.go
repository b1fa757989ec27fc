// Package auditor turns raw detector output into a compliance report.
//
// An Auditor is bound to one target and produces exactly one Report:
//
//	a := auditor.New("example.com", taxonomy.Default())
//	report, err := a.AnalyzeDetections(detections)
//
// Unknown labels and detections at or below ConfidenceThreshold are skipped
// without side effects. Every gated detection deducts its rule's penalty,
// yields a Finding, and adds a breakdown entry for its citation unless that
// citation has already failed earlier in the same audit.
package auditor

import (
	"strconv"
	"time"

	"github.com/raysh454/darklens/internal/taxonomy"
)

const (
	// ConfidenceThreshold is exclusive: a detection must score strictly above it.
	ConfidenceThreshold = 0.65

	InitialTrustScore  = 100
	CompliantThreshold = 80

	timestampLayout      = "2006-01-02T15:04:05Z"
	timestampMicroLayout = "2006-01-02T15:04:05.000000Z"
)

// Auditor accumulates the findings of a single audit. It is not safe for
// concurrent use and must not be reused.
type Auditor struct {
	target   string
	taxonomy *taxonomy.Taxonomy
	clock    func() time.Time

	used       bool
	trustScore int
	findings   []Finding
	breakdown  []BreakdownEntry
	citations  map[string]bool
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithClock overrides the time source used for the report timestamp.
func WithClock(clock func() time.Time) Option {
	return func(a *Auditor) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// New returns an Auditor for target. A nil taxonomy selects taxonomy.Default().
func New(target string, tax *taxonomy.Taxonomy, opts ...Option) *Auditor {
	if tax == nil {
		tax = taxonomy.Default()
	}
	a := &Auditor{
		target:     target,
		taxonomy:   tax,
		clock:      time.Now,
		trustScore: InitialTrustScore,
		findings:   make([]Finding, 0),
		breakdown:  make([]BreakdownEntry, 0),
		citations:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Target returns the audit subject.
func (a *Auditor) Target() string { return a.target }

// AnalyzeDetections scores detections in input order and assembles the report.
//
// The whole input is validated before anything is scored, so a malformed
// detection fails the call without producing a partial report. The Auditor is
// spent after the first call whether or not it succeeded.
func (a *Auditor) AnalyzeDetections(detections []RawDetection) (*Report, error) {
	if a.used {
		return nil, ErrReuseNotAllowed
	}
	a.used = true

	if err := ValidateDetections(detections); err != nil {
		return nil, err
	}

	for _, d := range detections {
		a.apply(d)
	}

	if a.trustScore < 0 {
		a.trustScore = 0
	}
	return a.report(), nil
}

func (a *Auditor) apply(d RawDetection) {
	rule, ok := a.taxonomy.Lookup(d.Label)
	if !ok {
		return
	}
	confidence := d.Conf()
	if confidence <= ConfidenceThreshold {
		return
	}

	// Clamped once at the end, not per deduction.
	a.trustScore -= rule.PenaltyWeight

	a.findings = append(a.findings, Finding{
		Type:       FindingType,
		Category:   rule.Category,
		Pattern:    rule.DisplayName,
		Confidence: roundTo(confidence*100, 2),
		Coordinates: Coordinates{
			YMin: d.Box[0],
			XMin: d.Box[1],
			YMax: d.Box[2],
			XMax: d.Box[3],
		},
		Explanation: rule.Description,
	})

	if a.citations[rule.RegulationCitation] {
		return
	}
	a.citations[rule.RegulationCitation] = true
	a.breakdown = append(a.breakdown, BreakdownEntry{
		Article:      rule.RegulationCitation,
		Finding:      OutcomeFailed,
		Impact:       rule.Description,
		SuggestedFix: rule.Remedy,
	})
}

func (a *Auditor) report() *Report {
	return &Report{
		Summary: Summary{
			TargetURL:       a.target,
			TrustScore:      a.trustScore,
			Status:          Classify(a.trustScore),
			AuditTimestamp:  FormatTimestamp(a.clock()),
			TotalViolations: len(a.findings),
		},
		VisualAudit: VisualAudit{
			Detections: a.findings,
		},
		RegulatoryBreakdown: a.breakdown,
	}
}

// Classify maps a final trust score to a compliance status.
func Classify(score int) Status {
	if score >= CompliantThreshold {
		return StatusCompliant
	}
	return StatusNonCompliant
}

// FormatTimestamp renders t in UTC as ISO-8601 with a trailing Z. The
// fraction has microsecond precision and is omitted when it is zero.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format(timestampLayout)
	}
	return t.Format(timestampMicroLayout)
}

// roundTo rounds the exact binary value of v half to even.
func roundTo(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}
