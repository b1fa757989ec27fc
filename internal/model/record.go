package model

import (
	"time"

	"github.com/raysh454/darklens/internal/auditor"
)

// AuditRecord is a finished report plus the bookkeeping needed to find it again.
type AuditRecord struct {
	ID string `json:"id"`

	// Target is the identifier the audit ran against, verbatim.
	Target string `json:"target"`

	// TargetKey is the canonical form used to group audits of the same site.
	TargetKey string `json:"target_key"`

	TrustScore      int            `json:"trust_score"`
	Status          auditor.Status `json:"status"`
	TotalViolations int            `json:"total_violations"`

	// Detector names the detector backend that produced the findings.
	Detector   string `json:"detector,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`

	CreatedAt time.Time       `json:"created_at"`
	Report    *auditor.Report `json:"report"`
}

// NewAuditRecord copies the summary fields out of report.
func NewAuditRecord(id, targetKey string, report *auditor.Report, createdAt time.Time) *AuditRecord {
	rec := &AuditRecord{
		ID:        id,
		TargetKey: targetKey,
		CreatedAt: createdAt.UTC(),
		Report:    report,
	}
	if report != nil {
		rec.Target = report.Summary.TargetURL
		rec.TrustScore = report.Summary.TrustScore
		rec.Status = report.Summary.Status
		rec.TotalViolations = report.Summary.TotalViolations
	}
	return rec
}
