package report

import "sort"

// SeverityCounts tallies patterns per tier.
type SeverityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// PatternSummary is the view model for the Suspicious Patterns section.
// SectionRisk is always the aggregator's pattern section value — never
// recomputed here — so the panel and the meters cannot disagree.
type PatternSummary struct {
	Counts            SeverityCounts      `json:"counts"`
	CombinedRiskScore float64             `json:"combined_risk_score"`
	SectionRisk       float64             `json:"section_risk"`
	Sorted            []SuspiciousPattern `json:"sorted"`
}

// severityRank orders tiers high < medium < low; unknown tiers sort last.
func severityRank(severity string) int {
	switch severity {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

// SummarizePatterns counts, totals, and orders the pattern list. The
// sort is stable: equal-severity patterns keep their payload order. An
// empty list yields an all-zero summary (the "no patterns detected"
// affirmative state).
func SummarizePatterns(patterns []SuspiciousPattern, sectionRisk float64) PatternSummary {
	s := PatternSummary{
		SectionRisk: sectionRisk,
		Sorted:      append([]SuspiciousPattern(nil), patterns...),
	}
	for _, p := range patterns {
		s.CombinedRiskScore += float64(p.RiskScore)
		switch p.Severity {
		case SeverityHigh:
			s.Counts.High++
		case SeverityMedium:
			s.Counts.Medium++
		case SeverityLow:
			s.Counts.Low++
		}
	}
	sort.SliceStable(s.Sorted, func(i, j int) bool {
		return severityRank(s.Sorted[i].Severity) < severityRank(s.Sorted[j].Severity)
	})
	return s
}
