// Package interfaces holds the small cross-package contracts of the audit
// pipeline so components can depend on abstractions rather than backends.
package interfaces

import (
	"context"
	"time"

	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/model"
)

// Capturer renders a target and returns its screenshot and markup.
// Implementations should be safe for concurrent use.
type Capturer interface {
	Capture(ctx context.Context, target string) (*model.Capture, error)

	// Close releases browsers, temp files and similar resources.
	Close() error
}

// Detector finds dark-pattern candidates in a capture. It never scores them;
// that is the auditor's job.
type Detector interface {
	Detect(ctx context.Context, capture *model.Capture) ([]auditor.RawDetection, error)

	// Name identifies the detector in logs and stored records.
	Name() string
}

// ReportStore persists finished audits.
type ReportStore interface {
	Save(ctx context.Context, rec *model.AuditRecord) error
	Get(ctx context.Context, id string) (*model.AuditRecord, error)

	// List returns the most recent records first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]*model.AuditRecord, error)

	// ListByTarget returns records whose TargetKey matches, most recent first.
	ListByTarget(ctx context.Context, targetKey string, limit int) ([]*model.AuditRecord, error)

	// DeleteBefore removes records created before cutoff and reports how many.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

// Enumerator discovers the pages of a site worth auditing, starting at root.
type Enumerator interface {
	Enumerate(ctx context.Context, root string) ([]string, error)
}
