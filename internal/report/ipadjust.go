package report

import (
	"math"
	"sort"
	"strings"
)

// ipResolutionPenalty is the fixed risk bump applied when the domain's
// IP address could not be resolved. Unresolvable domains are a strong
// phishing signal (parked, newly registered, or already taken down).
const ipResolutionPenalty = 7.5

// IPUnresolved reports whether the payload's domain failed IP
// resolution: the address is absent, "Unknown", or "Could not resolve".
func IPUnresolved(d DomainInfo) bool {
	switch d.IPAddress {
	case "", "Unknown", "Could not resolve":
		return true
	}
	return false
}

// ApplyIPResolutionPenalty injects the fixed penalty into the payload:
// section totals, the feature-contribution list, and the aggregate
// score, each capped at 100 individually.
//
// NOT idempotent — reapplying compounds the penalty. Callers must run
// it exactly once per payload; BuildReport guarantees that by always
// recomputing from a fresh copy of the raw payload.
func ApplyIPResolutionPenalty(r *AnalysisResult) {
	Normalize(r)

	r.SectionTotals[SectionDomain] = capped(r.SectionTotals[SectionDomain] + ipResolutionPenalty)
	if cur, ok := r.SectionTotals[sectionRiskKey]; ok {
		r.SectionTotals[sectionRiskKey] = capped(cur + ipResolutionPenalty/2)
	}

	idx := -1
	for i, c := range r.FeatureContributions {
		name := strings.ToLower(c.Name)
		if strings.Contains(name, "ip_resolution") || strings.Contains(name, "ip_address") {
			idx = i
			break
		}
	}
	if idx >= 0 {
		r.FeatureContributions[idx].Value = "Could not resolve"
		r.FeatureContributions[idx].Percentage += ipResolutionPenalty
		r.FeatureContributions[idx].ColorClass = "danger"
	} else {
		r.FeatureContributions = append(r.FeatureContributions, FeatureContribution{
			Name:       "IP Resolution",
			Value:      "Could not resolve",
			Percentage: ipResolutionPenalty,
			ColorClass: "danger",
		})
	}

	sort.SliceStable(r.FeatureContributions, func(i, j int) bool {
		return math.Abs(float64(r.FeatureContributions[i].Percentage)) >
			math.Abs(float64(r.FeatureContributions[j].Percentage))
	})

	if r.Score != nil {
		s := capped(*r.Score + ipResolutionPenalty/3)
		r.Score = &s
	}
}

func capped(n Number) Number {
	if n > 100 {
		return 100
	}
	return n
}
