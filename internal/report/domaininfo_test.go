package report_test

import (
	"testing"
	"time"

	"github.com/kianh03/fraudlens/internal/report"
)

var domainNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func TestFormatDomainTLDClassification(t *testing.T) {
	cases := []struct {
		url            string
		wantText       string
		wantSuspicious bool
	}{
		{"https://example.com/path", "Common TLD (.com)", false},
		{"http://login.bank-example.tk", "Suspicious TLD (.tk)", true},
		{"site.de", "Country Code (.de)", false},
		{"shop.example.foo", "Generic TLD (.foo)", false},
		{"APP.EXAMPLE.XYZ", "Suspicious TLD (.xyz)", true},
		{"localhost", "", false},
	}
	for _, tc := range cases {
		disp := report.FormatDomain(tc.url, report.DomainInfo{}, domainNow)
		if disp.TLDTypeText != tc.wantText || disp.TLDSuspicious != tc.wantSuspicious {
			t.Errorf("FormatDomain(%q): tld = %q suspicious=%v, want %q %v",
				tc.url, disp.TLDTypeText, disp.TLDSuspicious, tc.wantText, tc.wantSuspicious)
		}
	}
}

func TestDomainAgeBuckets(t *testing.T) {
	cases := []struct {
		created    string
		wantText   string
		wantBucket string
	}{
		{"2024-06-05", "10 days (Created: Jun 5, 2024)", report.AgeBucketDanger},
		{"2024-04-15", "2 months (Created: Apr 15, 2024)", report.AgeBucketWarning},
		{"2023-12-15", "6 months (Created: Dec 15, 2023)", report.AgeBucketNeutral},
		{"2023-05-10", "1 year (Created: May 10, 2023)", report.AgeBucketSafe},
		{"2014-06-15", "10 years (Created: Jun 15, 2014)", report.AgeBucketSafe},
		{"2023-05-10 00:00:00", "1 year (Created: May 10, 2023)", report.AgeBucketSafe},
		{"10-Jun-2024", "5 days (Created: Jun 10, 2024)", report.AgeBucketDanger},
		{"not a date", "not a date", report.AgeBucketNeutral},
		{"Unknown", "", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		disp := report.FormatDomain("example.com", report.DomainInfo{Created: tc.created}, domainNow)
		if disp.DomainAgeText != tc.wantText || disp.DomainAgeBucket != tc.wantBucket {
			t.Errorf("created %q: age = %q bucket %q, want %q %q",
				tc.created, disp.DomainAgeText, disp.DomainAgeBucket, tc.wantText, tc.wantBucket)
		}
	}
}

func TestFormatDomainWhoisPrivacy(t *testing.T) {
	cases := []struct {
		org  string
		want string
	}{
		{"Domains By Proxy LLC", "Enabled"},
		{"WhoisGuard, Inc.", "Enabled"},
		{"Privacy Protect, LLC", "Enabled"},
		{"Example Hosting GmbH", ""},
		{"", ""},
	}
	for _, tc := range cases {
		disp := report.FormatDomain("example.com", report.DomainInfo{Organization: tc.org}, domainNow)
		if disp.WhoisPrivacy != tc.want {
			t.Errorf("org %q: whois privacy = %q, want %q", tc.org, disp.WhoisPrivacy, tc.want)
		}
	}
}

func TestFormatDomainLocation(t *testing.T) {
	cases := []struct {
		name string
		d    report.DomainInfo
		want bool
	}{
		{"coords", report.DomainInfo{Latitude: 52.52, Longitude: 13.4}, true},
		{"country only", report.DomainInfo{Country: "Germany"}, true},
		{"unknown country", report.DomainInfo{Country: "Unknown"}, false},
		{"zero coords", report.DomainInfo{Latitude: 0, Longitude: 0}, false},
		{"half coords", report.DomainInfo{Latitude: 52.52}, false},
	}
	for _, tc := range cases {
		disp := report.FormatDomain("example.com", tc.d, domainNow)
		if disp.HasLocation != tc.want {
			t.Errorf("%s: has_location = %v, want %v", tc.name, disp.HasLocation, tc.want)
		}
	}
}

func TestFormatDomainFiltersUnknown(t *testing.T) {
	disp := report.FormatDomain("example.com", report.DomainInfo{
		IPAddress:    "93.184.216.34",
		Organization: "Unknown",
		Country:      "Unknown",
		City:         "Unknown",
	}, domainNow)
	if disp.Organization != "" || disp.Country != "" || disp.City != "" {
		t.Errorf("Unknown placeholders must be omitted: %+v", disp)
	}
	if disp.IPUnresolved {
		t.Error("resolved IP flagged as unresolved")
	}
}
