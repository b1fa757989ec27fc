package auditor_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/taxonomy"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newAuditor(target string) *auditor.Auditor {
	return auditor.New(target, taxonomy.Default(), auditor.WithClock(fixedClock))
}

func TestAnalyzeDetections_EndToEndExample(t *testing.T) {
	dets := []auditor.RawDetection{
		auditor.NewDetection(taxonomy.PreselectedInvasiveDefault, 0.94, 400, 200, 420, 220),
		auditor.NewDetection(taxonomy.HiddenInPlainSight, 0.88, 800, 150, 815, 300),
	}

	report, err := newAuditor("example.com").AnalyzeDetections(dets)
	require.NoError(t, err)

	assert.Equal(t, "example.com", report.Summary.TargetURL)
	assert.Equal(t, 50, report.Summary.TrustScore)
	assert.Equal(t, auditor.StatusNonCompliant, report.Summary.Status)
	assert.Equal(t, 2, report.Summary.TotalViolations)
	assert.Equal(t, "2025-03-14T09:26:53.589793Z", report.Summary.AuditTimestamp)

	require.Len(t, report.VisualAudit.Detections, 2)
	first := report.VisualAudit.Detections[0]
	assert.Equal(t, auditor.FindingType, first.Type)
	assert.Equal(t, taxonomy.CategorySkipping, first.Category)
	assert.Equal(t, "Deceptive Snugness", first.Pattern)
	assert.Equal(t, 94.0, first.Confidence)
	assert.Equal(t, auditor.Coordinates{YMin: 400, XMin: 200, YMax: 420, XMax: 220}, first.Coordinates)

	second := report.VisualAudit.Detections[1]
	assert.Equal(t, 88.0, second.Confidence)
	assert.Equal(t, auditor.Coordinates{YMin: 800, XMin: 150, YMax: 815, XMax: 300}, second.Coordinates)

	require.Len(t, report.RegulatoryBreakdown, 2)
	assert.NotEqual(t, report.RegulatoryBreakdown[0].Article, report.RegulatoryBreakdown[1].Article)
	for _, b := range report.RegulatoryBreakdown {
		assert.Equal(t, auditor.OutcomeFailed, b.Finding)
	}
	assert.Equal(t, "Leave all non-essential consent checkboxes unchecked by default.", report.RegulatoryBreakdown[0].SuggestedFix)
}

func TestAnalyzeDetections_EmptyInput(t *testing.T) {
	report, err := newAuditor("example.com").AnalyzeDetections(nil)
	require.NoError(t, err)

	assert.Equal(t, 100, report.Summary.TrustScore)
	assert.Equal(t, auditor.StatusCompliant, report.Summary.Status)
	assert.Zero(t, report.Summary.TotalViolations)
	assert.Empty(t, report.VisualAudit.Detections)
	assert.Empty(t, report.RegulatoryBreakdown)

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"detections":[]`)
	assert.Contains(t, string(raw), `"regulatory_breakdown":[]`)
}

func TestAnalyzeDetections_ConfidenceBoundary(t *testing.T) {
	at, err := newAuditor("t").AnalyzeDetections([]auditor.RawDetection{
		auditor.NewDetection(taxonomy.MisleadingButton, 0.65, 1, 2, 3, 4),
	})
	require.NoError(t, err)
	assert.Equal(t, 100, at.Summary.TrustScore)
	assert.Empty(t, at.VisualAudit.Detections)
	assert.Empty(t, at.RegulatoryBreakdown)

	above, err := newAuditor("t").AnalyzeDetections([]auditor.RawDetection{
		auditor.NewDetection(taxonomy.MisleadingButton, 0.6501, 1, 2, 3, 4),
	})
	require.NoError(t, err)
	assert.Equal(t, 75, above.Summary.TrustScore)
	require.Len(t, above.VisualAudit.Detections, 1)
	assert.Equal(t, 65.01, above.VisualAudit.Detections[0].Confidence)
}

func TestAnalyzeDetections_ConfidenceRoundsHalfToEven(t *testing.T) {
	cases := []struct {
		confidence float64
		want       float64
	}{
		{0.70125, 70.12},
		{0.66125, 66.12},
		{0.65125, 65.12},
		{0.93375, 93.38},
		{0.94, 94},
		{0.6501, 65.01},
		{0.723456, 72.35},
	}
	for _, tc := range cases {
		report, err := newAuditor("t").AnalyzeDetections([]auditor.RawDetection{
			auditor.NewDetection(taxonomy.MisleadingButton, tc.confidence, 1, 2, 3, 4),
		})
		require.NoError(t, err)
		require.Len(t, report.VisualAudit.Detections, 1)
		assert.Equal(t, tc.want, report.VisualAudit.Detections[0].Confidence, "confidence %v", tc.confidence)
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		at   time.Time
		want string
	}{
		{fixedNow, "2025-03-14T09:26:53.589793Z"},
		{time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC), "2025-03-14T09:26:53Z"},
		{time.Date(2025, 3, 14, 9, 26, 53, 999, time.UTC), "2025-03-14T09:26:53Z"},
		{time.Date(2025, 3, 14, 9, 26, 53, 1000, time.UTC), "2025-03-14T09:26:53.000001Z"},
		{time.Date(2025, 3, 14, 10, 26, 53, 0, time.FixedZone("CET", 3600)), "2025-03-14T09:26:53Z"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, auditor.FormatTimestamp(tc.at))
	}

	whole := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	report, err := auditor.New("t", taxonomy.Default(), auditor.WithClock(func() time.Time { return whole })).AnalyzeDetections(nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14T09:26:53Z", report.Summary.AuditTimestamp)
}

func TestAnalyzeDetections_MissingConfidenceDefaultsToOne(t *testing.T) {
	report, err := newAuditor("t").AnalyzeDetections([]auditor.RawDetection{
		{Label: taxonomy.EmotionalSteering, Box: []float64{0, 0, 10, 10}},
	})
	require.NoError(t, err)
	require.Len(t, report.VisualAudit.Detections, 1)
	assert.Equal(t, 100.0, report.VisualAudit.Detections[0].Confidence)
	assert.Equal(t, 85, report.Summary.TrustScore)
}

func TestAnalyzeDetections_ScoreFloor(t *testing.T) {
	var dets []auditor.RawDetection
	for i := 0; i < 6; i++ {
		dets = append(dets, auditor.NewDetection(taxonomy.HiddenInPlainSight, 0.9, 0, 0, 1, 1))
	}

	report, err := newAuditor("t").AnalyzeDetections(dets)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Summary.TrustScore)
	assert.Equal(t, 6, report.Summary.TotalViolations)
	assert.Len(t, report.RegulatoryBreakdown, 1, "same rule repeats the same citation")
}

func TestAnalyzeDetections_StatusBoundary(t *testing.T) {
	// 100 - 20 = 80
	at80, err := newAuditor("t").AnalyzeDetections([]auditor.RawDetection{
		auditor.NewDetection(taxonomy.AmbiguousWording, 0.9, 0, 0, 1, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 80, at80.Summary.TrustScore)
	assert.Equal(t, auditor.StatusCompliant, at80.Summary.Status)

	assert.Equal(t, auditor.StatusCompliant, auditor.Classify(80))
	assert.Equal(t, auditor.StatusNonCompliant, auditor.Classify(79))
	assert.Equal(t, auditor.StatusNonCompliant, auditor.Classify(0))
}

func TestAnalyzeDetections_UnknownLabelSkipped(t *testing.T) {
	report, err := newAuditor("t").AnalyzeDetections([]auditor.RawDetection{
		auditor.NewDetection("not_a_real_pattern", 0.99, 0, 0, 1, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 100, report.Summary.TrustScore)
	assert.Empty(t, report.VisualAudit.Detections)
	assert.Empty(t, report.RegulatoryBreakdown)
}

func TestAnalyzeDetections_CitationDedupFirstSeen(t *testing.T) {
	const shared = "Shared Art. 1"
	tax, err := taxonomy.New(
		taxonomy.PatternRule{
			ID: "alpha", Category: taxonomy.CategorySkipping, DisplayName: "Alpha",
			RegulationCitation: shared, Description: "alpha impact", Severity: taxonomy.SeverityHigh,
			PenaltyWeight: 10, Remedy: "fix alpha",
		},
		taxonomy.PatternRule{
			ID: "beta", Category: taxonomy.CategorySkipping, DisplayName: "Beta",
			RegulationCitation: shared, Description: "beta impact", Severity: taxonomy.SeverityLow,
			PenaltyWeight: 5, Remedy: "fix beta",
		},
		taxonomy.PatternRule{
			ID: "gamma", Category: taxonomy.CategoryHindering, DisplayName: "Gamma",
			RegulationCitation: "Other Art. 2", Description: "gamma impact", Severity: taxonomy.SeverityMedium,
			PenaltyWeight: 1, Remedy: "fix gamma",
		},
	)
	require.NoError(t, err)

	a := auditor.New("t", tax, auditor.WithClock(fixedClock))
	report, err := a.AnalyzeDetections([]auditor.RawDetection{
		auditor.NewDetection("beta", 0.9, 0, 0, 1, 1),
		auditor.NewDetection("gamma", 0.9, 0, 0, 1, 1),
		auditor.NewDetection("alpha", 0.9, 0, 0, 1, 1),
	})
	require.NoError(t, err)

	assert.Equal(t, 84, report.Summary.TrustScore)
	assert.Equal(t, 3, report.Summary.TotalViolations)
	require.Len(t, report.RegulatoryBreakdown, 2)
	assert.Equal(t, shared, report.RegulatoryBreakdown[0].Article)
	assert.Equal(t, "beta impact", report.RegulatoryBreakdown[0].Impact, "keyed by first occurrence")
	assert.Equal(t, "fix beta", report.RegulatoryBreakdown[0].SuggestedFix)
	assert.Equal(t, "Other Art. 2", report.RegulatoryBreakdown[1].Article)
	assert.Equal(t, []string{shared, "Other Art. 2"}, report.Articles())
}

func TestAnalyzeDetections_LowConfidenceSkippedWithoutSideEffects(t *testing.T) {
	report, err := newAuditor("t").AnalyzeDetections([]auditor.RawDetection{
		auditor.NewDetection(taxonomy.VisualDistraction, 0.2, 0, 0, 1, 1),
		auditor.NewDetection(taxonomy.OverwhelmingOptions, 0.7, 5, 6, 7, 8),
	})
	require.NoError(t, err)
	assert.Equal(t, 85, report.Summary.TrustScore)
	require.Len(t, report.VisualAudit.Detections, 1)
	assert.Equal(t, "Too Many Options", report.VisualAudit.Detections[0].Pattern)
}

func TestAnalyzeDetections_ReuseRejected(t *testing.T) {
	a := newAuditor("t")
	_, err := a.AnalyzeDetections(nil)
	require.NoError(t, err)

	_, err = a.AnalyzeDetections(nil)
	assert.ErrorIs(t, err, auditor.ErrReuseNotAllowed)
}

func TestAnalyzeDetections_InvalidInputFailsWholeCall(t *testing.T) {
	tests := []struct {
		name string
		det  auditor.RawDetection
	}{
		{"missing label", auditor.RawDetection{Box: []float64{0, 0, 1, 1}}},
		{"short box", auditor.NewDetection(taxonomy.MisleadingButton, 0.9, 0, 0, 1)},
		{"long box", auditor.NewDetection(taxonomy.MisleadingButton, 0.9, 0, 0, 1, 1, 2)},
		{"nil box on unknown label", auditor.NewDetection("unknown", 0.9)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newAuditor("t")
			report, err := a.AnalyzeDetections([]auditor.RawDetection{
				auditor.NewDetection(taxonomy.MisleadingButton, 0.9, 0, 0, 1, 1),
				tc.det,
			})
			require.Error(t, err)
			assert.Nil(t, report)
			assert.ErrorIs(t, err, auditor.ErrInvalidDetection)

			var de *auditor.DetectionError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, 1, de.Index)

			_, err = a.AnalyzeDetections(nil)
			assert.ErrorIs(t, err, auditor.ErrReuseNotAllowed, "auditor is unusable after a failure")
		})
	}
}

func TestAnalyzeDetections_Deterministic(t *testing.T) {
	dets := []auditor.RawDetection{
		auditor.NewDetection(taxonomy.PreselectedInvasiveDefault, 0.94, 400, 200, 420, 220),
		auditor.NewDetection(taxonomy.VisualDistraction, 0.71, 10, 20, 30, 40),
		auditor.NewDetection("unmapped", 0.99, 1, 1, 1, 1),
	}

	first, err := auditor.New("example.com", nil).AnalyzeDetections(dets)
	require.NoError(t, err)
	second, err := auditor.New("example.com", nil).AnalyzeDetections(dets)
	require.NoError(t, err)

	first.Summary.AuditTimestamp = ""
	second.Summary.AuditTimestamp = ""
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.JSONEq(t, string(a), string(b))
}

func TestReport_JSONShape(t *testing.T) {
	report, err := newAuditor("example.com").AnalyzeDetections([]auditor.RawDetection{
		auditor.NewDetection(taxonomy.MisleadingButton, 0.8, 1, 2, 3, 4),
	})
	require.NoError(t, err)

	raw, err := json.Marshal(report)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))

	summary := generic["report_summary"].(map[string]any)
	for _, k := range []string{"target_url", "trust_score", "status", "audit_timestamp", "total_violations"} {
		assert.Contains(t, summary, k)
	}
	det := generic["visual_audit"].(map[string]any)["detections"].([]any)[0].(map[string]any)
	assert.Equal(t, "Dark Pattern Detected", det["type"])
	assert.Equal(t, "Hindering", det["category"])
	assert.Equal(t, "Misleading Information", det["pattern"])
	assert.Equal(t, map[string]any{"y_min": 1.0, "x_min": 2.0, "y_max": 3.0, "x_max": 4.0}, det["coordinates"])
	assert.Contains(t, det, "explanation")

	entry := generic["regulatory_breakdown"].([]any)[0].(map[string]any)
	assert.Equal(t, "FAILED", entry["finding"])
	for _, k := range []string{"article", "impact", "suggested_fix"} {
		assert.Contains(t, entry, k)
	}
}
