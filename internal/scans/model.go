// Package scans persists scan results and per-user scan statistics.
package scans

import (
	"time"

	"github.com/google/uuid"

	"github.com/kianh03/fraudlens/internal/report"
)

// Risk level values stored with each scan record.
const (
	RiskLevelHigh   = "high"
	RiskLevelMedium = "medium"
	RiskLevelLow    = "low"
)

// RiskLevelForScore buckets an aggregate score for persistence and
// history filtering. These storage thresholds differ from the display
// labels: a score of exactly 60 is stored medium but rendered
// "High Risk".
func RiskLevelForScore(score float64) string {
	switch {
	case score > 60:
		return RiskLevelHigh
	case score >= 30:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// Scan is one stored analysis run. Result holds the full rendered
// report as JSONB so history views need no re-computation.
type Scan struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	URL       string         `json:"url"`
	RiskScore float64        `json:"risk_score"`
	RiskLevel string         `json:"risk_level"`
	Result    *report.Report `json:"result,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Stats is the per-user scan statistics document. All counters are
// monotonic; AvgRiskScore is a running average over TotalScans.
type Stats struct {
	UserID          uuid.UUID `json:"user_id"`
	TotalScans      int64     `json:"total_scans"`
	ThreatsDetected int64     `json:"threats_detected"`
	SafeURLs        int64     `json:"safe_urls"`
	AvgRiskScore    float64   `json:"avg_risk_score"`
	HighRiskScans   int64     `json:"high_risk_scans"`
	MediumRiskScans int64     `json:"medium_risk_scans"`
	LowRiskScans    int64     `json:"low_risk_scans"`
	LastScanDate    time.Time `json:"last_scan_date"`
}

// Apply folds one scan into the statistics. Threats count only high
// risk; safe URLs count only low. The running average never needs the
// scan history, only the previous average and count.
func (s *Stats) Apply(score float64, level string, at time.Time) {
	s.TotalScans++
	s.AvgRiskScore += (score - s.AvgRiskScore) / float64(s.TotalScans)
	switch level {
	case RiskLevelHigh:
		s.ThreatsDetected++
		s.HighRiskScans++
	case RiskLevelMedium:
		s.MediumRiskScans++
	default:
		s.SafeURLs++
		s.LowRiskScans++
	}
	s.LastScanDate = at
}

// Distribution is the dashboard risk-distribution breakdown.
type Distribution struct {
	High   int64 `json:"high"`
	Medium int64 `json:"medium"`
	Low    int64 `json:"low"`
}

// Distribution derives the per-tier breakdown from the counters.
func (s *Stats) Distribution() Distribution {
	return Distribution{High: s.HighRiskScans, Medium: s.MediumRiskScans, Low: s.LowRiskScans}
}
