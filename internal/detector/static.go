package detector

import (
	"context"
	"slices"

	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/model"
	"github.com/raysh454/darklens/internal/taxonomy"
)

// MockDetections is the fixed pair an untrained inference service answers with.
func MockDetections() []auditor.RawDetection {
	return []auditor.RawDetection{
		auditor.NewDetection(taxonomy.PreselectedInvasiveDefault, 0.94, 400, 200, 420, 220),
		auditor.NewDetection(taxonomy.HiddenInPlainSight, 0.88, 800, 150, 815, 300),
	}
}

// StaticDetector returns the same detections for every capture.
type StaticDetector struct {
	detections []auditor.RawDetection
}

func NewStaticDetector(detections []auditor.RawDetection) *StaticDetector {
	if len(detections) == 0 {
		detections = MockDetections()
	}
	return &StaticDetector{detections: detections}
}

func (s *StaticDetector) Name() string { return string(BackendStatic) }

func (s *StaticDetector) Detect(ctx context.Context, _ *model.Capture) ([]auditor.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]auditor.RawDetection, len(s.detections))
	for i, d := range s.detections {
		d.Box = slices.Clone(d.Box)
		out[i] = d
	}
	return out, nil
}
