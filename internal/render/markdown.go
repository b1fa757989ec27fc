// Package render turns audit reports into documents people read: Markdown,
// a standalone HTML page and an Excel workbook.
package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/raysh454/darklens/internal/auditor"
)

var ErrNilReport = errors.New("nil report")

// Format names accepted by ContentType and the report endpoints.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatXLSX     = "xlsx"
)

// ContentType returns the MIME type and file extension for a format.
func ContentType(format string) (mime, ext string, ok bool) {
	switch strings.ToLower(format) {
	case FormatMarkdown, "md":
		return "text/markdown; charset=utf-8", "md", true
	case FormatHTML:
		return "text/html; charset=utf-8", "html", true
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx", true
	}
	return "", "", false
}

// Markdown renders report as a Markdown document.
func Markdown(report *auditor.Report) (string, error) {
	if report == nil {
		return "", ErrNilReport
	}
	s := report.Summary

	var b strings.Builder
	fmt.Fprintf(&b, "# Compliance report: %s\n\n", cell(s.TargetURL))

	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Target | %s |\n", cell(s.TargetURL))
	fmt.Fprintf(&b, "| Trust score | %d / 100 |\n", s.TrustScore)
	fmt.Fprintf(&b, "| Status | **%s** |\n", s.Status)
	fmt.Fprintf(&b, "| Audited at | %s |\n", s.AuditTimestamp)
	fmt.Fprintf(&b, "| Violations | %d |\n\n", s.TotalViolations)

	b.WriteString("## Findings\n\n")
	if len(report.VisualAudit.Detections) == 0 {
		b.WriteString("No dark patterns were detected.\n\n")
	} else {
		b.WriteString("| # | Pattern | Category | Confidence | Box (y_min, x_min, y_max, x_max) |\n|---|---|---|---|---|\n")
		for i, f := range report.VisualAudit.Detections {
			c := f.Coordinates
			fmt.Fprintf(&b, "| %d | %s | %s | %s%% | %s, %s, %s, %s |\n",
				i+1, cell(f.Pattern), cell(string(f.Category)), num(f.Confidence),
				num(c.YMin), num(c.XMin), num(c.YMax), num(c.XMax))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Regulatory breakdown\n\n")
	if len(report.RegulatoryBreakdown) == 0 {
		b.WriteString("No regulation was breached.\n")
	}
	for _, e := range report.RegulatoryBreakdown {
		fmt.Fprintf(&b, "### %s\n\n", e.Article)
		fmt.Fprintf(&b, "- **Finding:** %s\n", e.Finding)
		fmt.Fprintf(&b, "- **Impact:** %s\n", e.Impact)
		fmt.Fprintf(&b, "- **Suggested fix:** %s\n\n", e.SuggestedFix)
	}
	return b.String(), nil
}

func cell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
