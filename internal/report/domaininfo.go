package report

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Domain age display buckets.
const (
	AgeBucketDanger  = "danger"  // under 30 days
	AgeBucketWarning = "warning" // under 90 days
	AgeBucketNeutral = "neutral" // under a year
	AgeBucketSafe    = "safe"    // a year or older
)

// commonTLDs are well-established suffixes; suspiciousTLDs are suffixes
// with a documented concentration of abuse (cheap or free registration).
var (
	commonTLDs     = tldSet("com", "org", "net", "edu", "gov", "io", "co", "me", "app", "dev")
	suspiciousTLDs = tldSet("tk", "ml", "ga", "cf", "gq", "top", "xyz", "online", "site", "club", "icu")
)

func tldSet(tlds ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(tlds))
	for _, t := range tlds {
		m[t] = struct{}{}
	}
	return m
}

// whoisPrivacyPattern infers registrar privacy services from the
// organization name. Absence of a match means "unknown", not "disabled".
var whoisPrivacyPattern = regexp.MustCompile(`(?i)privacy|protect|proxy|private|whois`)

// createdLayouts are the date formats seen in upstream WHOIS responses.
var createdLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"January 2, 2006",
}

// DomainDisplay is the formatted Domain Information view model. It is
// purely presentational: the only risk influence of domain metadata is
// the IP-resolution penalty, applied elsewhere.
type DomainDisplay struct {
	IPAddress       string `json:"ip_address"`
	IPUnresolved    bool   `json:"ip_unresolved"`
	Organization    string `json:"organization,omitempty"`
	Country         string `json:"country,omitempty"`
	City            string `json:"city,omitempty"`
	DomainAgeText   string `json:"domain_age_text,omitempty"`
	DomainAgeBucket string `json:"domain_age_bucket,omitempty"`
	TLDTypeText     string `json:"tld_type_text,omitempty"`
	TLDSuspicious   bool   `json:"tld_suspicious"`
	WhoisPrivacy    string `json:"whois_privacy,omitempty"` // "Enabled" or empty
	HasLocation     bool   `json:"has_location"`
	Latitude        float64 `json:"latitude,omitempty"`
	Longitude       float64 `json:"longitude,omitempty"`
}

// FormatDomain derives the Domain Information view model from the raw
// payload fields. now anchors the age calculation so tests are
// deterministic. All parsing failures degrade to raw strings or omitted
// fields; FormatDomain never fails.
func FormatDomain(rawURL string, d DomainInfo, now time.Time) DomainDisplay {
	disp := DomainDisplay{
		IPAddress:    d.IPAddress,
		IPUnresolved: IPUnresolved(d),
		Latitude:     float64(d.Latitude),
		Longitude:    float64(d.Longitude),
	}
	if d.Organization != "" && d.Organization != "Unknown" {
		disp.Organization = d.Organization
	}
	if d.Country != "" && d.Country != "Unknown" {
		disp.Country = d.Country
	}
	if d.City != "" && d.City != "Unknown" {
		disp.City = d.City
	}

	disp.DomainAgeText, disp.DomainAgeBucket = domainAge(d.Created, now)
	disp.TLDTypeText, disp.TLDSuspicious = classifyTLD(rawURL)

	if whoisPrivacyPattern.MatchString(d.Organization) {
		disp.WhoisPrivacy = "Enabled"
	}

	disp.HasLocation = (d.Latitude != 0 && d.Longitude != 0) || disp.Country != ""
	return disp
}

// domainAge formats the registration age and its display bucket.
// Unparseable dates fall back to the raw string with a neutral bucket;
// missing/Unknown dates yield empty strings.
func domainAge(created string, now time.Time) (text, bucket string) {
	if created == "" || created == "Unknown" {
		return "", ""
	}

	var createdAt time.Time
	var err error
	for _, layout := range createdLayouts {
		createdAt, err = time.Parse(layout, created)
		if err == nil {
			break
		}
	}
	if err != nil {
		return created, AgeBucketNeutral
	}

	days := int(now.Sub(createdAt).Hours() / 24)
	stamp := createdAt.Format("Jan 2, 2006")

	switch {
	case days < 30:
		return fmt.Sprintf("%d days (Created: %s)", days, stamp), AgeBucketDanger
	case days < 90:
		return fmt.Sprintf("%d months (Created: %s)", days/30, stamp), AgeBucketWarning
	case days < 365:
		return fmt.Sprintf("%d months (Created: %s)", days/30, stamp), AgeBucketNeutral
	default:
		years := days / 365
		unit := "years"
		if years == 1 {
			unit = "year"
		}
		return fmt.Sprintf("%d %s (Created: %s)", years, unit, stamp), AgeBucketSafe
	}
}

// classifyTLD labels the URL's top-level domain. A two-letter suffix
// outside both fixed sets is assumed to be a country code.
func classifyTLD(rawURL string) (text string, suspicious bool) {
	host := hostOf(rawURL)
	if host == "" || !strings.Contains(host, ".") {
		return "", false
	}
	parts := strings.Split(host, ".")
	tld := strings.ToLower(parts[len(parts)-1])
	if tld == "" {
		return "", false
	}

	switch {
	case member(commonTLDs, tld):
		return fmt.Sprintf("Common TLD (.%s)", tld), false
	case member(suspiciousTLDs, tld):
		return fmt.Sprintf("Suspicious TLD (.%s)", tld), true
	case len(tld) == 2:
		return fmt.Sprintf("Country Code (.%s)", tld), false
	default:
		return fmt.Sprintf("Generic TLD (.%s)", tld), false
	}
}

func member(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// hostOf extracts the hostname from a possibly scheme-less URL string.
func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		// Fall back to everything before the first slash.
		s = strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
		if i := strings.IndexAny(s, "/?#"); i >= 0 {
			s = s[:i]
		}
		return s
	}
	return u.Hostname()
}
