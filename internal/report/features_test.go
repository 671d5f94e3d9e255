package report_test

import (
	"testing"

	"github.com/kianh03/fraudlens/internal/report"
)

func TestTopFactorsFeatureTableWins(t *testing.T) {
	// Both sources populated with different data: feature_table is
	// authoritative and the legacy list must be ignored entirely.
	r := &report.AnalysisResult{
		FeatureTable: []report.FeatureRow{
			{Feature: "url_length", Value: 120.0, Impact: 40},
		},
		FeatureContributions: []report.FeatureContribution{
			{Name: "legacy_only", Percentage: 99, Section: report.SectionKeyRisk},
		},
	}
	top := report.TopFactors(r)
	if len(top) != 1 || top[0].Feature != "url_length" {
		t.Fatalf("top factors = %+v, want feature_table entry only", top)
	}
}

func TestTopFactorsLegacyFallback(t *testing.T) {
	r := &report.AnalysisResult{
		FeatureContributions: []report.FeatureContribution{
			{Name: "https_present", Percentage: 25, Section: report.SectionKeyRisk},
			{Name: "whois_age", Percentage: 50, Section: report.SectionDomain}, // wrong section
			{Name: "noise", Percentage: 0.001, Section: report.SectionKeyRisk}, // below threshold
		},
	}
	top := report.TopFactors(r)
	if len(top) != 1 || top[0].Feature != "https_present" {
		t.Fatalf("top factors = %+v, want the single Key Risk Factors entry", top)
	}
}

func TestTopFactorsFilterSortCap(t *testing.T) {
	r := &report.AnalysisResult{
		FeatureTable: []report.FeatureRow{
			{Feature: "a", Impact: 5},
			{Feature: "b", Impact: -50}, // abs sort
			{Feature: "c", Impact: 0.005},
			{Feature: "d", Impact: 30},
			{Feature: "e", Impact: 10},
			{Feature: "f", Impact: 20},
			{Feature: "g", Impact: 1},
		},
	}
	top := report.TopFactors(r)
	if len(top) != 5 {
		t.Fatalf("len(top) = %d, want 5", len(top))
	}
	wantOrder := []string{"b", "d", "f", "e", "a"}
	for i, w := range wantOrder {
		if top[i].Feature != w {
			t.Errorf("top[%d] = %q, want %q", i, top[i].Feature, w)
		}
	}
}

func TestCategorize(t *testing.T) {
	r := &report.AnalysisResult{
		FeatureTable: []report.FeatureRow{
			{Feature: "url_length", Impact: 10},
			{Feature: "domain_entropy", Impact: 20},
			{Feature: "https_present", Impact: 30},
			{Feature: "keyword_count", Impact: 5},
			{Feature: "something_else", Impact: 1}, // defaults to content
			{Feature: "tld_score", Impact: 40},
		},
	}
	cats := report.Categorize(r)

	if len(cats.URL) != 1 || cats.URL[0].Feature != "url_length" {
		t.Errorf("url category = %+v", cats.URL)
	}
	if len(cats.Domain) != 2 || cats.Domain[0].Feature != "tld_score" {
		t.Errorf("domain category = %+v (want tld_score first by impact)", cats.Domain)
	}
	if len(cats.Security) != 1 || cats.Security[0].Feature != "https_present" {
		t.Errorf("security category = %+v", cats.Security)
	}
	if len(cats.Content) != 2 {
		t.Errorf("content category = %+v (want keyword_count + fallback)", cats.Content)
	}
}

func TestImpactColorClasses(t *testing.T) {
	// The feature table and the top-factors panel use different
	// thresholds on the same scale; both schemes are load-bearing.
	table := []struct {
		impact      float64
		wantTable   string
		wantTopPane string
	}{
		{70, "danger", "danger"},
		{60, "warning", "danger"},
		{25, "warning", "warning"},
		{20, "success", "warning"},
		{15, "success", "success"},
		{5, "success", "success"},
	}
	for _, tc := range table {
		if got := report.ImpactColorClass(tc.impact); got != tc.wantTable {
			t.Errorf("ImpactColorClass(%v) = %q, want %q", tc.impact, got, tc.wantTable)
		}
		if got := report.TopFactorColorClass(tc.impact); got != tc.wantTopPane {
			t.Errorf("TopFactorColorClass(%v) = %q, want %q", tc.impact, got, tc.wantTopPane)
		}
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{true, "Yes"},
		{false, "No"},
		{1.0, "Yes"},
		{0.0, "No"},
		{float64(94), "94"},
		{3.14159, "3.14"},
		{"Could not resolve", "Could not resolve"},
		{nil, "-"},
	}
	for _, tc := range cases {
		if got := report.FormatValue(tc.in); got != tc.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
