package compare

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/raysh454/darklens/internal/auditor"
	"github.com/raysh454/darklens/internal/model"
)

var ErrNoRecords = errors.New("no records")

// TrendPoint is one audit on a target's timeline.
type TrendPoint struct {
	ID         string         `json:"id"`
	TrustScore int            `json:"trust_score"`
	Status     auditor.Status `json:"status"`
	AuditedAt  time.Time      `json:"audited_at"`
}

// TargetTrend summarises a target's trust scores over time.
type TargetTrend struct {
	TargetKey string `json:"target_key"`
	Count     int    `json:"count"`

	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`

	LatestScore    int            `json:"latest_score"`
	LatestStatus   auditor.Status `json:"latest_status"`
	CompliantRatio float64        `json:"compliant_ratio"`

	// Change is the latest score minus the first one.
	Change int `json:"change"`

	// Points are ordered oldest first.
	Points []TrendPoint `json:"points"`
}

// Trend computes score statistics over records, which may come in any order.
// Statistics are rounded to two decimals.
func Trend(records []*model.AuditRecord) (*TargetTrend, error) {
	recs := make([]*model.AuditRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			recs = append(recs, r)
		}
	}
	if len(recs) == 0 {
		return nil, ErrNoRecords
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })

	scores := make(stats.Float64Data, len(recs))
	points := make([]TrendPoint, len(recs))
	compliant := 0
	for i, r := range recs {
		scores[i] = float64(r.TrustScore)
		points[i] = TrendPoint{ID: r.ID, TrustScore: r.TrustScore, Status: r.Status, AuditedAt: r.CreatedAt}
		if r.Status == auditor.StatusCompliant {
			compliant++
		}
	}

	mean, err := scores.Mean()
	if err != nil {
		return nil, fmt.Errorf("mean: %w", err)
	}
	median, err := scores.Median()
	if err != nil {
		return nil, fmt.Errorf("median: %w", err)
	}
	lo, err := scores.Min()
	if err != nil {
		return nil, fmt.Errorf("min: %w", err)
	}
	hi, err := scores.Max()
	if err != nil {
		return nil, fmt.Errorf("max: %w", err)
	}
	sd, err := scores.StandardDeviation()
	if err != nil {
		return nil, fmt.Errorf("std dev: %w", err)
	}

	first, latest := recs[0], recs[len(recs)-1]
	return &TargetTrend{
		TargetKey:      latest.TargetKey,
		Count:          len(recs),
		Mean:           round2(mean),
		Median:         round2(median),
		Min:            lo,
		Max:            hi,
		StdDev:         round2(sd),
		LatestScore:    latest.TrustScore,
		LatestStatus:   latest.Status,
		CompliantRatio: round2(float64(compliant) / float64(len(recs))),
		Change:         latest.TrustScore - first.TrustScore,
		Points:         points,
	}, nil
}

func round2(v float64) float64 {
	r, err := stats.Round(v, 2)
	if err != nil {
		return v
	}
	return r
}
