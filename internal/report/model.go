// Package report implements the result-rendering and risk-aggregation
// pipeline for URL fraud analyses. It takes the loosely typed payload
// returned by the prediction API and deterministically derives section
// risk scores, an aggregate score, a severity label, and the normalized
// view models consumed by the web frontend, the CLI, and the scan store.
//
// The package is pure: no I/O, no clocks except those passed in, and no
// shared state. A payload is built once per submission and discarded
// after rendering.
package report

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Section display names as they appear in the prediction payload's
// section_totals map. The "(AI Predict)" variant is the newer key for
// the same section; the aggregator accepts either, preferring it.
const (
	SectionKeyRisk   = "Key Risk Factors"
	SectionKeyRiskAI = "Key Risk Factors (AI Predict)"
	SectionDomain    = "Domain Information"
	SectionPatterns  = "Suspicious Patterns"

	// legacy roll-up key some payloads carry alongside the three sections
	sectionRiskKey = "Section Risk"
)

// Pattern severity tiers.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Number is a float64 that tolerates the prediction API's loose typing:
// it decodes JSON numbers, numeric strings, booleans, and null. Anything
// unparseable decodes to zero rather than failing the whole payload.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Number(f)
		return nil
	}
	switch string(data) {
	case "true":
		*n = 1
		return nil
	case "false":
		*n = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

// AnalysisResult is the top-level prediction payload. Every field except
// url is optional on the wire; Normalize fills the gaps so downstream
// stages never branch on absence.
type AnalysisResult struct {
	URL    string  `json:"url"`
	Score  *Number `json:"score,omitempty"`
	Status string  `json:"status,omitempty"`

	DomainInfo           DomainInfo            `json:"domain_info"`
	SuspiciousPatterns   []SuspiciousPattern   `json:"suspicious_patterns"`
	FeatureTable         []FeatureRow          `json:"feature_table"`
	FeatureContributions []FeatureContribution `json:"feature_contributions"`
	SectionTotals        map[string]Number     `json:"section_totals"`
	HTMLSecurity         *HTMLSecurityInfo     `json:"html_security,omitempty"`
}

// DomainInfo holds WHOIS and geo metadata for the analyzed domain.
// String fields may carry the literal "Unknown" when the upstream
// lookup failed; IPAddress additionally uses "Could not resolve".
type DomainInfo struct {
	IPAddress    string `json:"ip_address"`
	Organization string `json:"organization"`
	Country      string `json:"country"`
	City         string `json:"city"`
	Created      string `json:"created"`
	Latitude     Number `json:"latitude"`
	Longitude    Number `json:"longitude"`
}

// SuspiciousPattern is one detected pattern with its severity tier and
// risk point contribution.
type SuspiciousPattern struct {
	Pattern   string `json:"pattern"`
	Severity  string `json:"severity"`
	RiskScore Number `json:"risk_score"`
}

// FeatureRow is the canonical per-feature record from feature_table.
// Value may be a number, boolean, or string depending on the feature.
type FeatureRow struct {
	Feature    string `json:"feature"`
	Value      any    `json:"value"`
	Impact     Number `json:"impact"`
	ColorClass string `json:"color_class"`
}

// FeatureContribution is the legacy feature shape from
// feature_contributions. It maps onto FeatureRow via name→feature and
// percentage→impact; feature_table wins whenever both are present.
type FeatureContribution struct {
	Name       string `json:"name"`
	Value      any    `json:"value"`
	Percentage Number `json:"percentage"`
	Section    string `json:"section"`
	Direction  string `json:"direction"`
	ColorClass string `json:"color_class"`
}

// Row converts the legacy shape to the canonical one.
func (c FeatureContribution) Row() FeatureRow {
	return FeatureRow{
		Feature:    c.Name,
		Value:      c.Value,
		Impact:     c.Percentage,
		ColorClass: c.ColorClass,
	}
}

// HTMLSecurityInfo is the content-security analysis of the fetched page.
// ContentScore is 0-100, higher meaning riskier content.
type HTMLSecurityInfo struct {
	ContentScore   Number   `json:"content_score"`
	RiskFactors    []string `json:"risk_factors"`
	SecurityChecks []string `json:"security_checks"`
}

// Clone returns a deep copy of the payload. BuildReport works on a copy
// so the adjuster and aggregator never mutate the caller's raw payload,
// which keeps re-rendering safe (the IP penalty is not idempotent).
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Score != nil {
		s := *r.Score
		cp.Score = &s
	}
	if r.SuspiciousPatterns != nil {
		cp.SuspiciousPatterns = append([]SuspiciousPattern(nil), r.SuspiciousPatterns...)
	}
	if r.FeatureTable != nil {
		cp.FeatureTable = append([]FeatureRow(nil), r.FeatureTable...)
	}
	if r.FeatureContributions != nil {
		cp.FeatureContributions = append([]FeatureContribution(nil), r.FeatureContributions...)
	}
	if r.SectionTotals != nil {
		cp.SectionTotals = make(map[string]Number, len(r.SectionTotals))
		for k, v := range r.SectionTotals {
			cp.SectionTotals[k] = v
		}
	}
	if r.HTMLSecurity != nil {
		h := *r.HTMLSecurity
		h.RiskFactors = append([]string(nil), r.HTMLSecurity.RiskFactors...)
		h.SecurityChecks = append([]string(nil), r.HTMLSecurity.SecurityChecks...)
		cp.HTMLSecurity = &h
	}
	return &cp
}
