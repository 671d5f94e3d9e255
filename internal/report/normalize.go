package report

// Normalize fills in the optional payload collections with empty
// defaults so later stages can index and range without nil checks.
// It operates in place and returns its argument for chaining.
//
// Normalize is idempotent: applying it twice yields the same result as
// applying it once. It never fails — malformed fields were already
// degraded to zero values during decoding (see Number).
func Normalize(r *AnalysisResult) *AnalysisResult {
	if r == nil {
		return &AnalysisResult{
			SuspiciousPatterns:   []SuspiciousPattern{},
			FeatureTable:         []FeatureRow{},
			FeatureContributions: []FeatureContribution{},
			SectionTotals:        map[string]Number{},
		}
	}
	if r.SuspiciousPatterns == nil {
		r.SuspiciousPatterns = []SuspiciousPattern{}
	}
	if r.FeatureTable == nil {
		r.FeatureTable = []FeatureRow{}
	}
	if r.FeatureContributions == nil {
		r.FeatureContributions = []FeatureContribution{}
	}
	if r.SectionTotals == nil {
		r.SectionTotals = map[string]Number{}
	}
	return r
}
