package render

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/raysh454/darklens/internal/auditor"
)

const (
	SheetSummary   = "Summary"
	SheetFindings  = "Findings"
	SheetBreakdown = "Breakdown"
)

// XLSX writes report as a workbook with Summary, Findings and Breakdown sheets.
func XLSX(report *auditor.Report, w io.Writer) error {
	if report == nil {
		return ErrNilReport
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetFindings, SheetBreakdown} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	s := report.Summary
	summary := [][]any{
		{"Field", "Value"},
		{"Target", s.TargetURL},
		{"Trust score", s.TrustScore},
		{"Status", string(s.Status)},
		{"Audited at", s.AuditTimestamp},
		{"Violations", s.TotalViolations},
	}
	if err := writeRows(f, SheetSummary, summary); err != nil {
		return err
	}

	findings := [][]any{{"Pattern", "Category", "Confidence", "y_min", "x_min", "y_max", "x_max", "Explanation"}}
	for _, d := range report.VisualAudit.Detections {
		c := d.Coordinates
		findings = append(findings, []any{d.Pattern, string(d.Category), d.Confidence, c.YMin, c.XMin, c.YMax, c.XMax, d.Explanation})
	}
	if err := writeRows(f, SheetFindings, findings); err != nil {
		return err
	}

	breakdown := [][]any{{"Article", "Finding", "Impact", "Suggested fix"}}
	for _, e := range report.RegulatoryBreakdown {
		breakdown = append(breakdown, []any{e.Article, e.Finding, e.Impact, e.SuggestedFix})
	}
	if err := writeRows(f, SheetBreakdown, breakdown); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
