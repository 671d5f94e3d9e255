package report

// Risk severity labels for the aggregate score.
const (
	LabelLowRisk    = "Low Risk"
	LabelMediumRisk = "Medium Risk"
	LabelHighRisk   = "High Risk"
)

// SectionScores is the per-section breakdown behind the aggregate.
// Total is the plain sum of the three sections. Each section is capped
// at 100 upstream, but the sum is deliberately NOT capped: the original
// product displays sums above 100 unchanged, and clamping here would
// silently move severity boundaries.
type SectionScores struct {
	KeyRisk  float64 `json:"key_risk"`
	Domain   float64 `json:"domain"`
	Patterns float64 `json:"patterns"`
	Total    float64 `json:"total"`
}

// AggregateSections computes the section breakdown and overwrites the
// payload's score with the recomputed total.
//
// The pattern section is forced to zero whenever the pattern list is
// empty, regardless of any stale value in section_totals.
func AggregateSections(r *AnalysisResult) SectionScores {
	Normalize(r)

	keyRisk, ok := r.SectionTotals[SectionKeyRiskAI]
	if !ok || keyRisk == 0 {
		keyRisk = r.SectionTotals[SectionKeyRisk]
	}
	domain := r.SectionTotals[SectionDomain]

	var patterns Number
	if len(r.SuspiciousPatterns) > 0 {
		patterns = r.SectionTotals[SectionPatterns]
	}

	s := SectionScores{
		KeyRisk:  float64(keyRisk),
		Domain:   float64(domain),
		Patterns: float64(patterns),
	}
	s.Total = s.KeyRisk + s.Domain + s.Patterns

	total := Number(s.Total)
	r.Score = &total
	return s
}

// SeverityLabel maps an aggregate score to its 3-level label. These
// 30/60 boundaries apply to the section-based aggregate only; the
// per-feature display buckets use their own thresholds.
func SeverityLabel(total float64) string {
	switch {
	case total < 30:
		return LabelLowRisk
	case total < 60:
		return LabelMediumRisk
	default:
		return LabelHighRisk
	}
}

// SectionContribution returns a section's share of the total as a
// percentage plus its meter color bucket (≥50% high, ≥25% medium, else
// low). A zero total contributes zero everywhere.
func SectionContribution(section, total float64) (pct float64, bucket string) {
	if total <= 0 {
		return 0, "low"
	}
	pct = section / total * 100
	switch {
	case pct >= 50:
		bucket = "high"
	case pct >= 25:
		bucket = "medium"
	default:
		bucket = "low"
	}
	return pct, bucket
}
