package report_test

import (
	"testing"

	"github.com/kianh03/fraudlens/internal/report"
)

func TestIPUnresolved(t *testing.T) {
	cases := []struct {
		ip   string
		want bool
	}{
		{"", true},
		{"Unknown", true},
		{"Could not resolve", true},
		{"93.184.216.34", false},
	}
	for _, tc := range cases {
		if got := report.IPUnresolved(report.DomainInfo{IPAddress: tc.ip}); got != tc.want {
			t.Errorf("IPUnresolved(%q) = %v, want %v", tc.ip, got, tc.want)
		}
	}
}

func TestIPPenaltySingleApplication(t *testing.T) {
	r := &report.AnalysisResult{
		DomainInfo:    report.DomainInfo{IPAddress: "Could not resolve"},
		SectionTotals: map[string]report.Number{report.SectionDomain: 10},
	}
	report.ApplyIPResolutionPenalty(r)

	if got := r.SectionTotals[report.SectionDomain]; got != 17.5 {
		t.Fatalf("domain risk after penalty = %v, want 17.5", got)
	}

	// Reapplying compounds: pins the documented non-idempotence so a
	// future accidental double-invoke shows up as a test diff.
	report.ApplyIPResolutionPenalty(r)
	if got := r.SectionTotals[report.SectionDomain]; got != 25 {
		t.Fatalf("domain risk after double penalty = %v, want 25", got)
	}
}

func TestIPPenaltyCapsAtHundred(t *testing.T) {
	score := report.Number(99)
	r := &report.AnalysisResult{
		Score: &score,
		SectionTotals: map[string]report.Number{
			report.SectionDomain: 97,
			"Section Risk":       99,
		},
	}
	report.ApplyIPResolutionPenalty(r)

	if got := r.SectionTotals[report.SectionDomain]; got != 100 {
		t.Errorf("domain risk = %v, want capped 100", got)
	}
	if got := r.SectionTotals["Section Risk"]; got != 100 {
		t.Errorf("section risk = %v, want capped 100", got)
	}
	if *r.Score != 100 {
		t.Errorf("score = %v, want capped 100", *r.Score)
	}
}

func TestIPPenaltySectionRiskHalf(t *testing.T) {
	r := &report.AnalysisResult{
		SectionTotals: map[string]report.Number{
			report.SectionDomain: 0,
			"Section Risk":       10,
		},
	}
	report.ApplyIPResolutionPenalty(r)
	if got := r.SectionTotals["Section Risk"]; got != 13.75 {
		t.Errorf("section risk = %v, want 13.75 (half penalty)", got)
	}
}

func TestIPPenaltyScoreThird(t *testing.T) {
	score := report.Number(30)
	r := &report.AnalysisResult{Score: &score}
	report.ApplyIPResolutionPenalty(r)
	if *r.Score != 32.5 {
		t.Errorf("score = %v, want 32.5 (third of penalty)", *r.Score)
	}
}

func TestIPPenaltyUpdatesExistingContribution(t *testing.T) {
	r := &report.AnalysisResult{
		FeatureContributions: []report.FeatureContribution{
			{Name: "url_length", Percentage: 30},
			{Name: "rep_ip_resolution_failed", Value: "pending", Percentage: 4, ColorClass: "warning"},
		},
	}
	report.ApplyIPResolutionPenalty(r)

	var found *report.FeatureContribution
	for i := range r.FeatureContributions {
		if r.FeatureContributions[i].Name == "rep_ip_resolution_failed" {
			found = &r.FeatureContributions[i]
		}
	}
	if found == nil {
		t.Fatal("existing ip_resolution entry missing after penalty")
	}
	if found.Value != "Could not resolve" || found.Percentage != 11.5 || found.ColorClass != "danger" {
		t.Errorf("updated entry = %+v, want value=Could not resolve pct=11.5 class=danger", found)
	}

	// List re-sorted descending by |percentage|.
	if r.FeatureContributions[0].Name != "url_length" {
		t.Errorf("expected url_length (30%%) first after re-sort, got %q", r.FeatureContributions[0].Name)
	}
}

func TestIPPenaltyAppendsContribution(t *testing.T) {
	r := &report.AnalysisResult{
		FeatureContributions: []report.FeatureContribution{{Name: "https_present", Percentage: 2}},
	}
	report.ApplyIPResolutionPenalty(r)

	if len(r.FeatureContributions) != 2 {
		t.Fatalf("expected appended IP Resolution entry, got %d entries", len(r.FeatureContributions))
	}
	// 7.5 > 2, so the new entry sorts first.
	got := r.FeatureContributions[0]
	if got.Name != "IP Resolution" || got.Percentage != 7.5 || got.ColorClass != "danger" {
		t.Errorf("appended entry = %+v", got)
	}
}
