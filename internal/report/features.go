package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// topFactorLimit caps the Key Risk Factors panel.
const topFactorLimit = 5

// minVisibleImpact filters near-zero contributions out of the top
// factors panel. The full feature table is never filtered.
const minVisibleImpact = 0.01

// Feature category keys for the grouped feature-details view.
const (
	CategoryURL      = "url"
	CategoryDomain   = "domain"
	CategorySecurity = "security"
	CategoryContent  = "content"
)

// categoryKeywords maps each category to the feature-name substrings
// that place a feature in it. Features matching none of these fall into
// the content category.
var categoryKeywords = map[string][]string{
	CategoryURL:      {"url_length", "path_length", "query_length", "fragment_length", "special_char_count", "numeric_path"},
	CategoryDomain:   {"domain_length", "domain_entropy", "subdomain_count", "tld_score", "ip_url"},
	CategorySecurity: {"https_present", "ssl_valid", "hsts_present"},
	CategoryContent:  {"keyword_count", "digit_percentage", "letter_percentage", "suspicious_keywords"},
}

// categoryOrder fixes the render order of the grouped view.
var categoryOrder = []string{CategoryURL, CategoryDomain, CategorySecurity, CategoryContent}

// CategorizedFeatures groups every feature row by category, each group
// sorted descending by absolute impact. No per-category cap.
type CategorizedFeatures struct {
	URL      []FeatureRow `json:"url"`
	Domain   []FeatureRow `json:"domain"`
	Security []FeatureRow `json:"security"`
	Content  []FeatureRow `json:"content"`
}

// featureSource returns the authoritative feature list as canonical
// rows. feature_table wins whenever it is non-empty; the legacy
// feature_contributions list is consulted only as a fallback.
func featureSource(r *AnalysisResult) []FeatureRow {
	if len(r.FeatureTable) > 0 {
		return append([]FeatureRow(nil), r.FeatureTable...)
	}
	rows := make([]FeatureRow, 0, len(r.FeatureContributions))
	for _, c := range r.FeatureContributions {
		rows = append(rows, c.Row())
	}
	return rows
}

// TopFactors returns the up-to-five features with the largest absolute
// impact, excluding near-zero contributions. When only the legacy list
// is available, entries are restricted to the Key Risk Factors section
// as the original payloads tagged them.
func TopFactors(r *AnalysisResult) []FeatureRow {
	var rows []FeatureRow
	if len(r.FeatureTable) > 0 {
		for _, f := range r.FeatureTable {
			if math.Abs(float64(f.Impact)) > minVisibleImpact {
				rows = append(rows, f)
			}
		}
	} else {
		for _, c := range r.FeatureContributions {
			if c.Section == SectionKeyRisk && math.Abs(float64(c.Percentage)) > minVisibleImpact {
				rows = append(rows, c.Row())
			}
		}
	}
	sortByAbsImpact(rows)
	if len(rows) > topFactorLimit {
		rows = rows[:topFactorLimit]
	}
	return rows
}

// Categorize buckets every feature (unfiltered) into the four fixed
// categories by substring match on the lowercased feature name.
func Categorize(r *AnalysisResult) CategorizedFeatures {
	groups := map[string][]FeatureRow{}
	for _, f := range featureSource(r) {
		groups[categoryFor(f.Feature)] = append(groups[categoryFor(f.Feature)], f)
	}
	for _, cat := range categoryOrder {
		sortByAbsImpact(groups[cat])
	}
	return CategorizedFeatures{
		URL:      groups[CategoryURL],
		Domain:   groups[CategoryDomain],
		Security: groups[CategorySecurity],
		Content:  groups[CategoryContent],
	}
}

func categoryFor(feature string) string {
	name := strings.ToLower(feature)
	for _, cat := range categoryOrder {
		if cat == CategoryContent {
			continue // content doubles as the fallback; check it last
		}
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(name, kw) {
				return cat
			}
		}
	}
	for _, kw := range categoryKeywords[CategoryContent] {
		if strings.Contains(name, kw) {
			return CategoryContent
		}
	}
	return CategoryContent
}

func sortByAbsImpact(rows []FeatureRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return math.Abs(float64(rows[i].Impact)) > math.Abs(float64(rows[j].Impact))
	})
}

// ImpactColorClass buckets a feature-table impact for display coloring:
// above 60 danger, above 20 warning, else success. Display only — the
// aggregate score never consults these buckets.
func ImpactColorClass(impact float64) string {
	switch {
	case impact > 60:
		return "danger"
	case impact > 20:
		return "warning"
	default:
		return "success"
	}
}

// TopFactorColorClass buckets a Key Risk Factors panel entry. The panel
// uses tighter thresholds (30/15) than the feature table's 60/20; both
// schemes are intentional and must stay distinct.
func TopFactorColorClass(impact float64) string {
	switch {
	case impact > 30:
		return "danger"
	case impact > 15:
		return "warning"
	default:
		return "success"
	}
}

// FormatValue renders a feature value for display. Booleans and the
// numeric flags 0/1 render as Yes/No; everything else prints as-is.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case float64:
		if val == 1 {
			return "Yes"
		}
		if val == 0 {
			return "No"
		}
		return trimFloat(val)
	case Number:
		return FormatValue(float64(val))
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func trimFloat(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%.2f", f)
}
