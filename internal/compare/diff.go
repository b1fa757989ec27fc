// Package compare relates stored audits of the same target: what changed
// between two of them and how a target's score moves over time.
package compare

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/raysh454/darklens/internal/model"
)

var ErrMissingRecord = errors.New("both records are required")

// PatternDelta is the change in how often a pattern was found.
type PatternDelta struct {
	Pattern string `json:"pattern"`
	Base    int    `json:"base"`
	Head    int    `json:"head"`
	Delta   int    `json:"delta"`
}

// ReportDiff describes how head differs from base.
type ReportDiff struct {
	BaseID     string `json:"base_id"`
	HeadID     string `json:"head_id"`
	BaseTarget string `json:"base_target"`
	HeadTarget string `json:"head_target"`

	// SameTarget is false when the records belong to different target keys;
	// the diff is still computed.
	SameTarget bool `json:"same_target"`

	BaseScore int `json:"base_score"`
	HeadScore int `json:"head_score"`
	Delta     int `json:"delta"`

	BaseStatus    string `json:"base_status"`
	HeadStatus    string `json:"head_status"`
	StatusChanged bool   `json:"status_changed"`

	// Articles are regulation citations, each list in first-seen order.
	NewlyFailed  []string `json:"newly_failed"`
	Resolved     []string `json:"resolved"`
	StillFailing []string `json:"still_failing"`

	PatternDeltas []PatternDelta `json:"pattern_deltas"`

	// BreakdownDiff is a line diff of the two regulatory breakdowns, each
	// line prefixed with "+ ", "- " or "  ".
	BreakdownDiff string `json:"breakdown_diff"`
}

// Improved reports whether head scores higher than base.
func (d *ReportDiff) Improved() bool { return d != nil && d.Delta > 0 }

// Diff compares two stored audits.
func Diff(base, head *model.AuditRecord) (*ReportDiff, error) {
	if base == nil || head == nil || base.Report == nil || head.Report == nil {
		return nil, ErrMissingRecord
	}

	d := &ReportDiff{
		BaseID:        base.ID,
		HeadID:        head.ID,
		BaseTarget:    base.Target,
		HeadTarget:    head.Target,
		SameTarget:    base.TargetKey == head.TargetKey,
		BaseScore:     base.TrustScore,
		HeadScore:     head.TrustScore,
		Delta:         head.TrustScore - base.TrustScore,
		BaseStatus:    string(base.Status),
		HeadStatus:    string(head.Status),
		StatusChanged: base.Status != head.Status,
		NewlyFailed:   []string{},
		Resolved:      []string{},
		StillFailing:  []string{},
		PatternDeltas: []PatternDelta{},
	}

	baseArticles, headArticles := base.Report.Articles(), head.Report.Articles()
	inBase := toSet(baseArticles)
	inHead := toSet(headArticles)
	for _, a := range headArticles {
		if inBase[a] {
			d.StillFailing = append(d.StillFailing, a)
		} else {
			d.NewlyFailed = append(d.NewlyFailed, a)
		}
	}
	for _, a := range baseArticles {
		if !inHead[a] {
			d.Resolved = append(d.Resolved, a)
		}
	}

	baseCounts, headCounts := patternCounts(base), patternCounts(head)
	seen := make(map[string]struct{})
	for p := range baseCounts {
		seen[p] = struct{}{}
	}
	for p := range headCounts {
		seen[p] = struct{}{}
	}
	for p := range seen {
		if baseCounts[p] == headCounts[p] {
			continue
		}
		d.PatternDeltas = append(d.PatternDeltas, PatternDelta{
			Pattern: p,
			Base:    baseCounts[p],
			Head:    headCounts[p],
			Delta:   headCounts[p] - baseCounts[p],
		})
	}
	sort.Slice(d.PatternDeltas, func(i, j int) bool {
		return d.PatternDeltas[i].Pattern < d.PatternDeltas[j].Pattern
	})

	d.BreakdownDiff = lineDiff(breakdownText(base), breakdownText(head))
	return d, nil
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

func patternCounts(r *model.AuditRecord) map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Report.VisualAudit.Detections {
		counts[f.Pattern]++
	}
	return counts
}

func breakdownText(r *model.AuditRecord) string {
	b, err := json.MarshalIndent(r.Report.RegulatoryBreakdown, "", "  ")
	if err != nil {
		return ""
	}
	return string(b) + "\n"
}

// lineDiff renders a line-level diff of a and b. Unchanged input yields "".
func lineDiff(a, b string) string {
	if a == b {
		return ""
	}
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
		}
	}
	return out.String()
}
