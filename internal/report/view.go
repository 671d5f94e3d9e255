package report

import (
	"time"

	"go.uber.org/zap"
)

// SectionView is one row of the section risk meter block.
type SectionView struct {
	Name         string  `json:"name"`
	Score        float64 `json:"score"`
	Contribution float64 `json:"contribution"`
	ColorBucket  string  `json:"color_bucket"`
}

// FeatureView is a display-ready feature row: formatted value plus the
// panel-appropriate color bucket.
type FeatureView struct {
	Feature    string  `json:"feature"`
	Value      string  `json:"value"`
	Impact     float64 `json:"impact"`
	ColorClass string  `json:"color_class"`
}

// HTMLSecurityView is the Content Security panel model.
type HTMLSecurityView struct {
	ContentScore   float64  `json:"content_score"`
	Level          string   `json:"level"`
	RiskFactors    []string `json:"risk_factors"`
	SecurityChecks []string `json:"security_checks"`
}

// Report is the complete view model handed to renderers and persisted
// alongside scan records. All scores are final; consumers only format.
type Report struct {
	URL            string              `json:"url"`
	AggregateScore float64             `json:"aggregate_score"`
	SeverityLabel  string              `json:"severity_label"`
	Sections       []SectionView       `json:"sections"`
	TopFeatures    []FeatureView       `json:"top_features"`
	Categorized    CategorizedFeatures `json:"categorized_features"`
	Patterns       PatternSummary      `json:"pattern_summary"`
	Domain         DomainDisplay       `json:"domain_display"`
	HTMLSecurity   *HTMLSecurityView   `json:"html_security,omitempty"`
}

// Builder runs the full pipeline. Stages are isolated: a panic in one
// formatter is logged and skipped so the remaining sections still
// render. The builder itself is stateless and safe for concurrent use.
type Builder struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewBuilder creates a Builder. logger may be nil (no stage logging).
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger, now: time.Now}
}

// WithClock overrides the age-calculation clock. Test hook.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build runs raw through the pipeline and returns the view model.
//
// Build never mutates raw: it works on a deep copy, so the IP penalty
// is applied exactly once per invocation no matter how many times the
// same payload is rebuilt.
func (b *Builder) Build(raw *AnalysisResult) *Report {
	data := Normalize(raw.Clone())

	if IPUnresolved(data.DomainInfo) {
		b.stage("ip_resolution_penalty", func() {
			ApplyIPResolutionPenalty(data)
		})
	}

	// The aggregate runs first: later stages display its numbers.
	scores := AggregateSections(data)

	rep := &Report{
		URL:            data.URL,
		AggregateScore: scores.Total,
		SeverityLabel:  SeverityLabel(scores.Total),
		Sections:       sectionViews(scores),
	}

	b.stage("top_features", func() {
		for _, f := range TopFactors(data) {
			rep.TopFeatures = append(rep.TopFeatures, FeatureView{
				Feature:    f.Feature,
				Value:      FormatValue(f.Value),
				Impact:     float64(f.Impact),
				ColorClass: TopFactorColorClass(float64(f.Impact)),
			})
		}
	})

	b.stage("categorized_features", func() {
		rep.Categorized = Categorize(data)
	})

	b.stage("pattern_summary", func() {
		rep.Patterns = SummarizePatterns(data.SuspiciousPatterns, scores.Patterns)
	})

	b.stage("domain_display", func() {
		rep.Domain = FormatDomain(data.URL, data.DomainInfo, b.now())
	})

	b.stage("html_security", func() {
		if data.HTMLSecurity != nil {
			rep.HTMLSecurity = &HTMLSecurityView{
				ContentScore:   float64(data.HTMLSecurity.ContentScore),
				Level:          SeverityLabel(float64(data.HTMLSecurity.ContentScore)),
				RiskFactors:    data.HTMLSecurity.RiskFactors,
				SecurityChecks: data.HTMLSecurity.SecurityChecks,
			}
		}
	})

	return rep
}

func sectionViews(s SectionScores) []SectionView {
	views := make([]SectionView, 0, 3)
	for _, sec := range []struct {
		name  string
		score float64
	}{
		{SectionKeyRisk, s.KeyRisk},
		{SectionDomain, s.Domain},
		{SectionPatterns, s.Patterns},
	} {
		pct, bucket := SectionContribution(sec.score, s.Total)
		views = append(views, SectionView{
			Name:         sec.name,
			Score:        sec.score,
			Contribution: pct,
			ColorBucket:  bucket,
		})
	}
	return views
}

// stage runs fn with panic containment. A failed stage leaves its part
// of the report empty; everything else still renders.
func (b *Builder) stage(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("report stage failed",
				zap.String("stage", name),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
